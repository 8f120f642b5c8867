package database_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/creatorpulse/discovery/internal/database"
	"github.com/creatorpulse/discovery/internal/domain"
)

func setupResultRepo(t *testing.T) (*database.ResultRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return database.NewResultRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func recordsJSON(t *testing.T, records []domain.CreatorRecord) []byte {
	t.Helper()
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal records: %v", err)
	}
	return data
}

func TestResultRepositoryGetMissingSetIsEmpty(t *testing.T) {
	repo, mock := setupResultRepo(t)

	mock.ExpectQuery("SELECT records FROM discovery_results").
		WithArgs("job-1").
		WillReturnError(sql.ErrNoRows)

	records, err := repo.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Get() = %v, want empty non-nil slice", records)
	}
}

func TestResultRepositoryGet(t *testing.T) {
	repo, mock := setupResultRepo(t)

	stored := []domain.CreatorRecord{
		{Platform: "tiktok", CreatorID: "1", Handle: "alice"},
		{Platform: "tiktok", CreatorID: "2", Handle: "bob"},
	}
	mock.ExpectQuery("SELECT records FROM discovery_results").
		WithArgs("job-1").
		WillReturnRows(mock.NewRows([]string{"records"}).AddRow(recordsJSON(t, stored)))

	records, err := repo.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if len(records) != 2 || records[0].Handle != "alice" || records[1].Handle != "bob" {
		t.Errorf("Get() = %+v, want stored order preserved", records)
	}
}

func TestResultRepositoryAppendCreatesLazily(t *testing.T) {
	repo, mock := setupResultRepo(t)
	batch := []domain.CreatorRecord{{Platform: "tiktok", CreatorID: "1"}}

	// Unlocked fast-path read, then the transactional read-append-write.
	mock.ExpectQuery("SELECT records FROM discovery_results").
		WithArgs("job-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT records FROM discovery_results (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO discovery_results").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	total, err := repo.Append(context.Background(), "job-1", batch)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Append() total = %d, want 1", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestResultRepositoryAppendMerges(t *testing.T) {
	repo, mock := setupResultRepo(t)

	existing := []domain.CreatorRecord{{Platform: "tiktok", CreatorID: "1"}}
	batch := []domain.CreatorRecord{{Platform: "tiktok", CreatorID: "2"}}

	mock.ExpectQuery("SELECT records FROM discovery_results").
		WithArgs("job-1").
		WillReturnRows(mock.NewRows([]string{"records"}).AddRow(recordsJSON(t, existing)))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT records FROM discovery_results (.+) FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(mock.NewRows([]string{"records"}).AddRow(recordsJSON(t, existing)))
	mock.ExpectExec("INSERT INTO discovery_results").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	total, err := repo.Append(context.Background(), "job-1", batch)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if total != 2 {
		t.Errorf("Append() total = %d, want 2", total)
	}
}

func TestResultRepositoryAppendEmptyBatchIsNoOp(t *testing.T) {
	repo, mock := setupResultRepo(t)

	existing := []domain.CreatorRecord{{Platform: "tiktok", CreatorID: "1"}}
	mock.ExpectQuery("SELECT records FROM discovery_results").
		WithArgs("job-1").
		WillReturnRows(mock.NewRows([]string{"records"}).AddRow(recordsJSON(t, existing)))

	total, err := repo.Append(context.Background(), "job-1", nil)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Append() total = %d, want existing count", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no transaction should start for an empty batch: %v", err)
	}
}

func TestResultRepositoryCount(t *testing.T) {
	repo, mock := setupResultRepo(t)

	mock.ExpectQuery("SELECT jsonb_array_length").
		WithArgs("job-1").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 7 {
		t.Errorf("Count() = %d, want 7", count)
	}
}
