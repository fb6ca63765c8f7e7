package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/fanfootprint/internal/model"
)

func setupProfileMock(t *testing.T) (*PostgresProfileRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresProfileRepo(db), mock
}

func TestProfileRepo_FindByID(t *testing.T) {
	repo, mock := setupProfileMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, email FROM users WHERE id = $1`)).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(testUserID, "alice", "a@x.com"))

	p, err := repo.FindByID(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Username != "alice" {
		t.Errorf("profile = %+v, want alice", p)
	}
}

func TestProfileRepo_FindByID_NotFound(t *testing.T) {
	repo, mock := setupProfileMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, email FROM users WHERE id = $1`)).
		WithArgs(testUserID).
		WillReturnError(sql.ErrNoRows)

	p, err := repo.FindByID(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("profile = %+v, want nil", p)
	}
}

func TestProfileRepo_Create(t *testing.T) {
	repo, mock := setupProfileMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`)).
		WithArgs(testUserID, "alice", "a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), model.Profile{ID: testUserID, Username: "alice", Email: "a@x.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestProfileRepo_Create_Error(t *testing.T) {
	repo, mock := setupProfileMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "users_pkey"`))

	err := repo.Create(context.Background(), model.Profile{ID: testUserID})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
