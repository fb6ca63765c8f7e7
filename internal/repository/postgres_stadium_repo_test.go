package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/fanfootprint/internal/model"
)

const (
	testUserID    = "7b0c8a4e-3f1d-4c55-9be2-6a1d6f0d9a10"
	testStadiumID = "1f6d1c9e-8a2b-4d9e-9d3c-2b8f1a7e5c41"
)

var stadiumRowColumns = []string{"id", "user_id", "name", "city", "sport", "lat", "lng", "visited", "created_at"}

func setupStadiumMock(t *testing.T) (*PostgresStadiumRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStadiumRepo(db), mock
}

func TestStadiumRepo_ListByUserID(t *testing.T) {
	repo, mock := setupStadiumMock(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM stadiums WHERE user_id = \$1 ORDER BY created_at ASC`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows(stadiumRowColumns).
			AddRow(testStadiumID, testUserID, "Fenway Park", "Boston", "Baseball", 42.3467, -71.0972, true, created).
			AddRow("2c1d9e8f-1a2b-4c3d-8e9f-0a1b2c3d4e5f", testUserID, "TD Garden", "Boston", "Hockey", nil, nil, false, created))

	got, err := repo.ListByUserID(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Lat == nil || *got[0].Lat != 42.3467 {
		t.Errorf("Lat = %v, want 42.3467", got[0].Lat)
	}
	if got[1].Lat != nil || got[1].Lng != nil {
		t.Error("expected NULL coordinates to be nil")
	}
	if got[1].Visited {
		t.Error("expected Visited = false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStadiumRepo_ListByUserID_NonUUIDReturnsEmpty(t *testing.T) {
	repo, mock := setupStadiumMock(t)

	got, err := repo.ListByUserID(context.Background(), "not-a-uuid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty slice", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected query issued: %v", err)
	}
}

func TestStadiumRepo_Create_DefaultsVisited(t *testing.T) {
	repo, mock := setupStadiumMock(t)
	created := time.Now().UTC()
	lat, lng := 42.3, -71.1

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO stadiums (id, user_id, name, city, sport, lat, lng, visited)`)).
		WithArgs(sqlmock.AnyArg(), testUserID, "Fenway Park", "Boston", "Baseball", lat, lng, true).
		WillReturnRows(sqlmock.NewRows(stadiumRowColumns).
			AddRow(testStadiumID, testUserID, "Fenway Park", "Boston", "Baseball", lat, lng, true, created))

	s, err := repo.Create(context.Background(), testUserID, model.StadiumDraft{
		Name: "Fenway Park", City: "Boston", Sport: "Baseball", Lat: &lat, Lng: &lng,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != testStadiumID || !s.Visited || !s.CreatedAt.Equal(created) {
		t.Errorf("created = %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStadiumRepo_Create_Error(t *testing.T) {
	repo, mock := setupStadiumMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO stadiums`)).
		WillReturnError(errors.New(`insert or update on table "stadiums" violates foreign key constraint`))

	_, err := repo.Create(context.Background(), testUserID, model.StadiumDraft{Name: "n", City: "c", Sport: "s"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestStadiumRepo_Update_BuildsPartialSet(t *testing.T) {
	repo, mock := setupStadiumMock(t)
	visited := false
	name := "Fenway"

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE stadiums SET name = $1, visited = $2 WHERE id = $3 AND user_id = $4`)).
		WithArgs(name, visited, testStadiumID, testUserID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Update(context.Background(), testUserID, testStadiumID, model.StadiumUpdate{Name: &name, Visited: &visited})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStadiumRepo_Update_OtherOwnerAffectsNothing(t *testing.T) {
	repo, mock := setupStadiumMock(t)
	name := "x"

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE stadiums SET name = $1 WHERE id = $2 AND user_id = $3`)).
		WithArgs(name, testStadiumID, testUserID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Update(context.Background(), testUserID, testStadiumID, model.StadiumUpdate{Name: &name})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("affected = %d, want 0", n)
	}
}

func TestStadiumRepo_Update_EmptyReturnsError(t *testing.T) {
	repo, _ := setupStadiumMock(t)

	if _, err := repo.Update(context.Background(), testUserID, testStadiumID, model.StadiumUpdate{}); err == nil {
		t.Error("expected error for empty update")
	}
}

func TestStadiumRepo_Delete(t *testing.T) {
	repo, mock := setupStadiumMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM stadiums WHERE id = $1 AND user_id = $2`)).
		WithArgs(testStadiumID, testUserID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Delete(context.Background(), testUserID, testStadiumID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStadiumRepo_Delete_NonUUIDIsZeroRows(t *testing.T) {
	repo, mock := setupStadiumMock(t)

	n, err := repo.Delete(context.Background(), testUserID, "missing-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("affected = %d, want 0", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected query issued: %v", err)
	}
}
