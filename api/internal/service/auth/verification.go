package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/splax/classscribe/api/internal/domain"
	"github.com/splax/classscribe/api/internal/events"
	"github.com/splax/classscribe/api/internal/mail"
	"github.com/splax/classscribe/api/internal/repository"
	"github.com/splax/classscribe/pkg/crypto"
)

// VerifyEmail consumes the pending verification code and marks the email verified.
func (s Service) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.VerificationCode == nil {
		return nil, ErrNoVerificationCode
	}
	if !crypto.EqualSecrets(*user.VerificationCode, code) {
		return nil, ErrInvalidVerificationCode
	}
	if user.VerificationExpired(s.now()) {
		return nil, ErrVerificationCodeExpired
	}

	verified := true
	stored := *user.VerificationCode
	updated, err := s.users.UpdateUser(ctx, user.ID, domain.UserPatch{
		IfVerificationCode: &stored,
		ClearVerification:  true,
		IsEmailVerified:    &verified,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrNoVerificationCode
		}
		return nil, fmt.Errorf("mark email verified: %w", err)
	}
	s.logger.Info("email verified", "user_id", updated.ID)
	s.publish(ctx, events.UserEmailVerified, updated)
	return updated, nil
}

// ResendCode replaces any pending verification code with a fresh one and mails it.
func (s Service) ResendCode(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}
	code, expires, err := s.newVerificationCode()
	if err != nil {
		return err
	}
	if _, err := s.users.UpdateUser(ctx, user.ID, domain.UserPatch{
		VerificationCode:        &code,
		VerificationCodeExpires: &expires,
	}); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	s.logger.Info("verification code reissued", "user_id", user.ID)
	s.sendMail(ctx, user.ID, mail.VerificationMessage(user.Email, code, s.verificationTTL()))
	return nil
}

func (s Service) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	return user, nil
}
