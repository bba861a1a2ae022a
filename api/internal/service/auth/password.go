package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/splax/classscribe/api/internal/domain"
	"github.com/splax/classscribe/api/internal/events"
	"github.com/splax/classscribe/api/internal/mail"
	"github.com/splax/classscribe/api/internal/repository"
	"github.com/splax/classscribe/pkg/crypto"
)

const resetTokenBytes = 32

// ForgotPassword stores a reset token for the account and mails a reset link.
// It never reports whether the email belongs to an account.
func (s Service) ForgotPassword(ctx context.Context, email string) {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("forgot password lookup failed", "error", err)
		}
		return
	}
	token, err := crypto.RandomHex(resetTokenBytes)
	if err != nil {
		s.logger.Error("failed to generate reset token", "user_id", user.ID, "error", err)
		return
	}
	expires := s.now().UTC().Add(s.resetTTL())
	if _, err := s.users.UpdateUser(ctx, user.ID, domain.UserPatch{
		ResetPasswordToken:   &token,
		ResetPasswordExpires: &expires,
	}); err != nil {
		s.logger.Error("failed to store reset token", "user_id", user.ID, "error", err)
		return
	}
	s.logger.Info("password reset requested", "user_id", user.ID)
	s.sendMail(ctx, user.ID, mail.ResetMessage(user.Email, s.resetLink(token), s.resetTTL()))
}

// ResetPassword sets a new password for the holder of a live reset token and
// consumes the token. Unknown or expired tokens change nothing.
func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.users.FindUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if user.ResetExpired(s.now()) {
		return ErrInvalidResetToken
	}
	hash, err := crypto.HashPasswordWithCost(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.users.UpdateUser(ctx, user.ID, domain.UserPatch{
		IfResetToken:       &token,
		PasswordHash:       hash,
		ClearResetPassword: true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("store password: %w", err)
	}
	s.logger.Info("password reset", "user_id", updated.ID)
	s.publish(ctx, events.UserPasswordReset, updated)
	return nil
}

// ChangePassword replaces the password of an authenticated user after checking
// the current one.
func (s Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return ErrIncorrectPassword
		}
		return fmt.Errorf("compare password: %w", err)
	}
	hash, err := crypto.HashPasswordWithCost(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.users.UpdateUser(ctx, user.ID, domain.UserPatch{PasswordHash: hash})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("store password: %w", err)
	}
	s.logger.Info("password changed", "user_id", updated.ID)
	s.publish(ctx, events.UserPasswordChanged, updated)
	return nil
}

func (s Service) resetLink(token string) string {
	base := strings.TrimSpace(s.cfg.ResetURLBase)
	if base == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
