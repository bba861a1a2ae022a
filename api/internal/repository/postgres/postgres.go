package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/splax/classscribe/api/internal/domain"
	"github.com/splax/classscribe/api/internal/repository"
)

// Unique constraint names declared by the users migration.
const (
	constraintEmail    = "users_email_key"
	constraintUsername = "users_username_key"
	uniqueViolation    = "23505"
)

const userColumns = `id, email, username, password_hash,
	reset_password_token, reset_password_expires,
	verification_code, verification_code_expires,
	profile_image, bio, first_name, last_name, phone, location, website,
	role, is_email_verified, created_at, updated_at`

// DBTX is the subset of database/sql used by the repository. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements repository.UserRepository on PostgreSQL.
type Repository struct {
	db DBTX
}

// New constructs a Repository.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// Open connects through the pgx database/sql driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// ensure Repository satisfies interfaces.
var _ repository.UserRepository = (*Repository)(nil)

// FindUserByEmail fetches a user by exact email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

// FindUserByUsername fetches a user by exact username.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, query, username)
}

// FindUserByID retrieves a user by identifier.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindUserByResetToken retrieves the user holding a reset token.
func (r *Repository) FindUserByResetToken(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE reset_password_token = $1`
	return r.findOne(ctx, query, token)
}

// AddUser inserts a user. Uniqueness is enforced by the table constraints.
func (r *Repository) AddUser(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return repository.ErrInvalidArgument
	}
	const query = `INSERT INTO users (` + userColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		nullString(user.ResetPasswordToken),
		nullTime(user.ResetPasswordExpires),
		nullString(user.VerificationCode),
		nullTime(user.VerificationCodeExpires),
		user.ProfileImage,
		user.Bio,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Location,
		user.Website,
		user.Role,
		user.IsEmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateUser applies the non-nil patch fields in one statement and returns the
// updated row.
func (r *Repository) UpdateUser(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	sets, args := patchAssignments(patch)
	args = append(args, time.Now().UTC(), id)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)-1))
	where := []string{fmt.Sprintf("id = $%d", len(args))}
	if patch.IfResetToken != nil {
		args = append(args, *patch.IfResetToken)
		where = append(where, fmt.Sprintf("reset_password_token = $%d", len(args)))
	}
	if patch.IfVerificationCode != nil {
		args = append(args, *patch.IfVerificationCode)
		where = append(where, fmt.Sprintf("verification_code = $%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE users SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), strings.Join(where, " AND "), userColumns)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) && patch.HasPrecondition() {
			return nil, r.conditionalMiss(ctx, id)
		}
		return nil, mapError(err)
	}
	return user, nil
}

// conditionalMiss tells a missing row apart from a failed precondition.
func (r *Repository) conditionalMiss(ctx context.Context, id string) error {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return mapError(err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

// DeleteUser removes a user and reports whether a row was deleted.
func (r *Repository) DeleteUser(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM users WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// CountUsers returns the number of rows in users.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM users`
	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

func patchAssignments(p domain.UserPatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Username != nil {
		add("username", *p.Username)
	}
	if p.PasswordHash != nil {
		add("password_hash", p.PasswordHash)
	}
	if p.ClearResetPassword {
		sets = append(sets, "reset_password_token = NULL", "reset_password_expires = NULL")
	} else {
		if p.ResetPasswordToken != nil {
			add("reset_password_token", *p.ResetPasswordToken)
		}
		if p.ResetPasswordExpires != nil {
			add("reset_password_expires", p.ResetPasswordExpires.UTC())
		}
	}
	if p.ClearVerification {
		sets = append(sets, "verification_code = NULL", "verification_code_expires = NULL")
	} else {
		if p.VerificationCode != nil {
			add("verification_code", *p.VerificationCode)
		}
		if p.VerificationCodeExpires != nil {
			add("verification_code_expires", p.VerificationCodeExpires.UTC())
		}
	}
	for _, field := range []struct {
		column string
		value  *string
	}{
		{"profile_image", p.ProfileImage},
		{"bio", p.Bio},
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"phone", p.Phone},
		{"location", p.Location},
		{"website", p.Website},
	} {
		if field.value != nil {
			add(field.column, *field.value)
		}
	}
	if p.IsEmailVerified != nil {
		add("is_email_verified", *p.IsEmailVerified)
	}
	return sets, args
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u            domain.User
		resetToken   sql.NullString
		resetExpires sql.NullTime
		code         sql.NullString
		codeExpires  sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&resetToken,
		&resetExpires,
		&code,
		&codeExpires,
		&u.ProfileImage,
		&u.Bio,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Location,
		&u.Website,
		&u.Role,
		&u.IsEmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if resetToken.Valid {
		value := resetToken.String
		u.ResetPasswordToken = &value
	}
	if resetExpires.Valid {
		value := resetExpires.Time.UTC()
		u.ResetPasswordExpires = &value
	}
	if code.Valid {
		value := code.String
		u.VerificationCode = &value
	}
	if codeExpires.Valid {
		value := codeExpires.Time.UTC()
		u.VerificationCodeExpires = &value
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func mapError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintEmail:
			return repository.ErrEmailTaken
		case constraintUsername:
			return repository.ErrUsernameTaken
		}
		return repository.ErrInvalidArgument
	}
	return fmt.Errorf("db error: %w", err)
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
