package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/splax/classscribe/api/internal/domain"
	"github.com/splax/classscribe/api/internal/repository"
)

var columns = []string{
	"id", "email", "username", "password_hash",
	"reset_password_token", "reset_password_expires",
	"verification_code", "verification_code_expires",
	"profile_image", "bio", "first_name", "last_name", "phone", "location", "website",
	"role", "is_email_verified", "created_at", "updated_at",
}

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func userRow(code any, codeExpires any) *sqlmock.Rows {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(columns).AddRow(
		"u1", "a@b.com", "abc", []byte("hash"),
		nil, nil,
		code, codeExpires,
		"", "", "", "", "", "", "",
		domain.RoleStudent, false, created, created,
	)
}

func TestFindUserByEmail(t *testing.T) {
	repo, mock := newMock(t)
	expires := time.Date(2025, 1, 2, 3, 14, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
		WithArgs("a@b.com").
		WillReturnRows(userRow("123456", expires))

	u, err := repo.FindUserByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if u.ID != "u1" || u.Username != "abc" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.VerificationCode == nil || *u.VerificationCode != "123456" {
		t.Fatalf("expected verification code, got %v", u.VerificationCode)
	}
	if u.VerificationCodeExpires == nil || !u.VerificationCodeExpires.Equal(expires) {
		t.Fatalf("expected expiry %s, got %v", expires, u.VerificationCodeExpires)
	}
	if u.ResetPasswordToken != nil {
		t.Fatal("expected nil reset token")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindUserNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.FindUserByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindUserByResetTokenRejectsEmpty(t *testing.T) {
	repo, mock := newMock(t)
	if _, err := repo.FindUserByResetToken(context.Background(), " "); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query expected: %v", err)
	}
}

func TestAddUserMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{constraintEmail, repository.ErrEmailTaken},
		{constraintUsername, repository.ErrUsernameTaken},
	}
	for _, tc := range cases {
		repo, mock := newMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: tc.constraint})

		err := repo.AddUser(context.Background(), &domain.User{ID: "u2", Email: "a@b.com", Username: "abc"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("constraint %s: expected %v, got %v", tc.constraint, tc.want, err)
		}
	}
}

func TestAddUserSetsTimestamps(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &domain.User{ID: "u1", Email: "a@b.com", Username: "abc", Role: domain.RoleStudent}
	if err := repo.AddUser(context.Background(), u); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if u.CreatedAt.IsZero() || !u.UpdatedAt.Equal(u.CreatedAt) {
		t.Fatalf("expected timestamps, got %+v", u)
	}
}

func TestUpdateUserBuildsAssignments(t *testing.T) {
	repo, mock := newMock(t)
	verified := true
	mock.ExpectQuery(`UPDATE users SET verification_code = NULL, verification_code_expires = NULL, is_email_verified = \$1, updated_at = \$2 WHERE id = \$3 RETURNING`).
		WithArgs(true, sqlmock.AnyArg(), "u1").
		WillReturnRows(userRow(nil, nil))

	u, err := repo.UpdateUser(context.Background(), "u1", domain.UserPatch{ClearVerification: true, IsEmailVerified: &verified})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.VerificationCode != nil {
		t.Fatal("expected cleared code")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateUserMissingRow(t *testing.T) {
	repo, mock := newMock(t)
	bio := "x"
	mock.ExpectQuery(`UPDATE users SET bio = \$1, updated_at = \$2 WHERE id = \$3`).
		WillReturnError(sql.ErrNoRows)
	if _, err := repo.UpdateUser(context.Background(), "nope", domain.UserPatch{Bio: &bio}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserUsernameCollision(t *testing.T) {
	repo, mock := newMock(t)
	name := "taken"
	mock.ExpectQuery(`UPDATE users SET username = \$1`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintUsername})
	if _, err := repo.UpdateUser(context.Background(), "u1", domain.UserPatch{Username: &name}); !errors.Is(err, repository.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestDeleteAndCount(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM users`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	removed, err := repo.DeleteUser(context.Background(), "u1")
	if err != nil || !removed {
		t.Fatalf("DeleteUser = %v, %v", removed, err)
	}
	count, err := repo.CountUsers(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("CountUsers = %d, %v", count, err)
	}
}

func TestDBErrorsAreWrapped(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE username = \$1`).WillReturnError(errors.New("boom"))
	_, err := repo.FindUserByUsername(context.Background(), "abc")
	if err == nil || err.Error() != "db error: boom" {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdateUserConditionalOnResetToken(t *testing.T) {
	repo, mock := newMock(t)
	token := "tok"
	mock.ExpectQuery(`UPDATE users SET password_hash = \$1, reset_password_token = NULL, reset_password_expires = NULL, updated_at = \$2 WHERE id = \$3 AND reset_password_token = \$4 RETURNING`).
		WithArgs([]byte("new"), sqlmock.AnyArg(), "u1", "tok").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.UpdateUser(context.Background(), "u1", domain.UserPatch{
		IfResetToken:       &token,
		PasswordHash:       []byte("new"),
		ClearResetPassword: true,
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
