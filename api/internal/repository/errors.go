package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidArgument indicates the caller passed an unusable value.
	ErrInvalidArgument = errors.New("repository: invalid argument")
	// ErrEmailTaken indicates another user already owns the email.
	ErrEmailTaken = errors.New("repository: email already taken")
	// ErrConflict indicates a conditional update lost a race.
	ErrConflict = errors.New("repository: precondition failed")
	// ErrUsernameTaken indicates another user already owns the username.
	ErrUsernameTaken = errors.New("repository: username already taken")
)
