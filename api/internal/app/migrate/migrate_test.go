package migrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestNewValidatesArguments(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if _, err := New(nil, t.TempDir(), nil); err == nil {
		t.Fatal("expected error for nil db")
	}
	if _, err := New(db, "", nil); err == nil {
		t.Fatal("expected error for empty dir")
	}
	if _, err := New(db, filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("expected error for missing dir")
	}
	if _, err := New(db, t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPingPropagatesFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	runner, err := New(db, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := runner.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
}
