package repository

import (
	"context"

	"github.com/splax/classscribe/api/internal/domain"
)

// UserRepository persists users. Implementations enforce email and username
// uniqueness atomically in AddUser and UpdateUser and return copies so that
// callers never alias stored state.
type UserRepository interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByResetToken(ctx context.Context, token string) (*domain.User, error)
	AddUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	CountUsers(ctx context.Context) (int, error)
}
