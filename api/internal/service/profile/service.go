package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/splax/classscribe/api/internal/domain"
	"github.com/splax/classscribe/api/internal/events"
	"github.com/splax/classscribe/api/internal/repository"
	"github.com/splax/classscribe/api/internal/storage/avatar"
)

var (
	ErrUserNotFound    = errors.New("profile: user not found")
	ErrUsernameTaken   = errors.New("profile: username already taken")
	ErrAvatarsDisabled = errors.New("profile: avatar uploads disabled")
	ErrUnsupportedType = errors.New("profile: unsupported image type")
)

// AvatarPresigner issues direct upload URLs for profile images.
type AvatarPresigner interface {
	PresignUpload(ctx context.Context, userID, contentType string) (avatar.Upload, error)
}

// Service reads and edits user profiles.
type Service struct {
	users     repository.UserRepository
	avatars   AvatarPresigner
	publisher events.Publisher
	logger    *slog.Logger
}

// New constructs a Service. avatars and publisher may be nil.
func New(users repository.UserRepository, avatars AvatarPresigner, publisher events.Publisher, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return Service{users: users, avatars: avatars, publisher: publisher, logger: logger}
}

// UpdateInput lists editable profile fields. Nil fields are left unchanged.
type UpdateInput struct {
	Username     *string
	FirstName    *string
	LastName     *string
	Bio          *string
	Phone        *string
	Location     *string
	Website      *string
	ProfileImage *string
}

// Get returns the user's current profile.
func (s Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Update applies the provided fields. Taking a username held by another user
// fails without changing anything.
func (s Service) Update(ctx context.Context, userID string, in UpdateInput) (*domain.User, error) {
	patch := domain.UserPatch{
		Username:     nonBlank(trimmed(in.Username)),
		FirstName:    trimmed(in.FirstName),
		LastName:     trimmed(in.LastName),
		Bio:          in.Bio,
		Phone:        trimmed(in.Phone),
		Location:     trimmed(in.Location),
		Website:      trimmed(in.Website),
		ProfileImage: trimmed(in.ProfileImage),
	}
	updated, err := s.users.UpdateUser(ctx, userID, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.logger.Info("profile updated", "user_id", updated.ID)
	event := events.Event{Type: events.UserProfileUpdated, UserID: updated.ID, Email: updated.Email, OccurredAt: time.Now().UTC()}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event", event.Type, "user_id", updated.ID, "error", err)
	}
	return updated, nil
}

// PresignAvatar returns a direct upload target for a new profile image. The
// client stores the resulting image URL through Update once the upload is done.
func (s Service) PresignAvatar(ctx context.Context, userID, contentType string) (avatar.Upload, error) {
	if s.avatars == nil {
		return avatar.Upload{}, ErrAvatarsDisabled
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return avatar.Upload{}, err
	}
	upload, err := s.avatars.PresignUpload(ctx, userID, contentType)
	if err != nil {
		if errors.Is(err, avatar.ErrUnsupportedType) {
			return avatar.Upload{}, ErrUnsupportedType
		}
		return avatar.Upload{}, err
	}
	return upload, nil
}

// nonBlank drops a blank value. A username can be changed but never cleared.
func nonBlank(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
