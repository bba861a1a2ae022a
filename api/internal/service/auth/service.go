package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/classscribe/api/internal/domain"
	"github.com/splax/classscribe/api/internal/events"
	"github.com/splax/classscribe/api/internal/mail"
	"github.com/splax/classscribe/api/internal/repository"
	"github.com/splax/classscribe/api/internal/revocation"
	"github.com/splax/classscribe/pkg/config"
	"github.com/splax/classscribe/pkg/crypto"
	jwtpkg "github.com/splax/classscribe/pkg/jwt"
)

const verificationCodeDigits = 6

var (
	ErrUserExists              = errors.New("auth: user already exists")
	ErrUsernameTaken           = errors.New("auth: username already taken")
	ErrUserNotFound            = errors.New("auth: user not found")
	ErrInvalidCredentials      = errors.New("auth: invalid email or password")
	ErrUnauthorized            = errors.New("auth: unauthorized")
	ErrNoVerificationCode      = errors.New("auth: no verification code")
	ErrInvalidVerificationCode = errors.New("auth: invalid verification code")
	ErrVerificationCodeExpired = errors.New("auth: verification code expired")
	ErrAlreadyVerified         = errors.New("auth: email already verified")
	ErrInvalidResetToken       = errors.New("auth: invalid or expired reset token")
	ErrIncorrectPassword       = errors.New("auth: current password incorrect")
)

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	Issue(userID string) (string, *jwtpkg.Claims, error)
	Verify(token string) (*jwtpkg.Claims, error)
}

// Service handles authentication workflows.
type Service struct {
	users     repository.UserRepository
	tokens    TokenIssuer
	revoked   revocation.List
	mailer    mail.Mailer
	publisher events.Publisher
	logger    *slog.Logger
	cfg       config.APIConfig
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithMailer sets the mailer used for verification codes and reset links.
func WithMailer(m mail.Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRevocationList sets where logged out tokens are recorded.
func WithRevocationList(l revocation.List) Option {
	return func(s *Service) { s.revoked = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a Service. Without options mail goes to the log, events are
// dropped and logout does not revoke tokens.
func New(users repository.UserRepository, tokens TokenIssuer, logger *slog.Logger, cfg config.APIConfig, opts ...Option) Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := Service{
		users:     users,
		tokens:    tokens,
		logger:    logger,
		cfg:       cfg,
		mailer:    mail.NewLogMailer(logger),
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// RegisterInput carries a signup request.
type RegisterInput struct {
	Email        string
	Password     string
	Username     string
	ProfileImage string
}

// Session is an issued access token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Register creates an unverified account and mails it a verification code.
func (s Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if _, err := s.users.FindUserByEmail(ctx, in.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.users.FindUserByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := crypto.HashPasswordWithCost(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, expires, err := s.newVerificationCode()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:                      uuid.NewString(),
		Email:                   in.Email,
		Username:                in.Username,
		PasswordHash:            hash,
		VerificationCode:        &code,
		VerificationCodeExpires: &expires,
		ProfileImage:            strings.TrimSpace(in.ProfileImage),
		Role:                    domain.RoleStudent,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.users.AddUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, ErrUserExists
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	s.sendMail(ctx, user.ID, mail.VerificationMessage(user.Email, code, s.verificationTTL()))
	s.publish(ctx, events.UserRegistered, user)
	return user, nil
}

// Login checks credentials and issues an access token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, Session, error) {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, fmt.Errorf("lookup email: %w", err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, fmt.Errorf("compare password: %w", err)
	}
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, Session{}, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	s.publish(ctx, events.UserLoggedIn, user)
	return user, Session{Token: token, ExpiresAt: claims.ExpiresAtTime()}, nil
}

// Logout revokes the presented token until it expires. Missing or invalid
// tokens are not an error.
func (s Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" || s.revoked == nil {
		return nil
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info("user logged out", "user_id", claims.UserID)
	return nil
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Error("revocation lookup failed", "user_id", claims.UserID, "error", err)
		} else if revoked {
			return nil, nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
		}
	}
	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, claims, nil
}

// normalizeEmail makes lookups case insensitive. Addresses are stored lower case.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s Service) verificationTTL() time.Duration {
	if s.cfg.VerificationCodeTTL > 0 {
		return s.cfg.VerificationCodeTTL
	}
	return 10 * time.Minute
}

func (s Service) resetTTL() time.Duration {
	if s.cfg.ResetTokenTTL > 0 {
		return s.cfg.ResetTokenTTL
	}
	return time.Hour
}

func (s Service) newVerificationCode() (string, time.Time, error) {
	code, err := crypto.NumericCode(verificationCodeDigits)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate verification code: %w", err)
	}
	return code, s.now().UTC().Add(s.verificationTTL()), nil
}

// sendMail delivers msg and only logs failures; the account change that
// triggered it has already been stored.
func (s Service) sendMail(ctx context.Context, userID string, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send email", "user_id", userID, "subject", msg.Subject, "error", err)
	}
}

func (s Service) publish(ctx context.Context, eventType string, user *domain.User) {
	if s.publisher == nil {
		return
	}
	event := events.Event{Type: eventType, UserID: user.ID, Email: user.Email, OccurredAt: s.now().UTC()}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event", eventType, "user_id", user.ID, "error", err)
	}
}
