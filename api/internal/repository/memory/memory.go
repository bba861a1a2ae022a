package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/splax/classscribe/api/internal/domain"
	"github.com/splax/classscribe/api/internal/repository"
)

// Repository is an in-process user store. Records live in insertion order and
// lookups return the first match, so state is lost when the process exits.
type Repository struct {
	mu    sync.RWMutex
	users []*domain.User
	now   func() time.Time
}

// New constructs an empty Repository, optionally seeded with users.
func New(seed ...*domain.User) *Repository {
	r := &Repository{now: time.Now}
	for _, u := range seed {
		if u != nil {
			r.users = append(r.users, u.Clone())
		}
	}
	return r
}

var _ repository.UserRepository = (*Repository)(nil)

// FindUserByEmail returns the first user whose email matches exactly.
func (r *Repository) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

// FindUserByUsername returns the first user whose username matches exactly.
func (r *Repository) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

// FindUserByID returns the user with the given identifier.
func (r *Repository) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

// FindUserByResetToken returns the user holding the given reset token.
func (r *Repository) FindUserByResetToken(_ context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(u *domain.User) bool {
		return u.ResetPasswordToken != nil && *u.ResetPasswordToken == token
	})
}

// AddUser appends a user after checking uniqueness under the write lock.
func (r *Repository) AddUser(_ context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return repository.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		switch {
		case existing.ID == user.ID:
			return repository.ErrInvalidArgument
		case existing.Email == user.Email:
			return repository.ErrEmailTaken
		case existing.Username == user.Username:
			return repository.ErrUsernameTaken
		}
	}
	stored := user.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now().UTC()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	r.users = append(r.users, stored)
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

// UpdateUser merges patch into the stored user and returns the result.
func (r *Repository) UpdateUser(_ context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, u := range r.users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, repository.ErrNotFound
	}
	if !patch.Precondition(r.users[idx]) {
		return nil, repository.ErrConflict
	}
	if patch.Username != nil && *patch.Username != r.users[idx].Username {
		for i, u := range r.users {
			if i != idx && u.Username == *patch.Username {
				return nil, repository.ErrUsernameTaken
			}
		}
	}
	updated := r.users[idx].Clone()
	patch.Apply(updated)
	updated.UpdatedAt = r.now().UTC()
	r.users[idx] = updated
	return updated.Clone(), nil
}

// DeleteUser removes the user and reports whether a record was removed.
func (r *Repository) DeleteUser(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range r.users {
		if u.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// CountUsers returns the number of stored users.
func (r *Repository) CountUsers(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *Repository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}
