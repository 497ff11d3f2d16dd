package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sidepanelai/agentcore/pkg/models"
)

func setupMockStore(t *testing.T) (sqlmock.Sqlmock, *SQLiteStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewSQLiteStoreFromDB(db)
}

func TestSQLiteStoreSaveUpserts(t *testing.T) {
	mock, store := setupMockStore(t)
	snap := &Snapshot{ID: "exec-1", Status: models.StatusRunning, SavedAt: time.Now()}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("exec-1", "running", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Save(context.Background(), snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLiteStoreSaveRejectsEmptyID(t *testing.T) {
	_, store := setupMockStore(t)
	if err := store.Save(context.Background(), &Snapshot{}); err == nil {
		t.Fatal("expected an error for an empty id")
	}
}

func TestSQLiteStoreRestoreForcesCancelled(t *testing.T) {
	mock, store := setupMockStore(t)
	payload := `{"id":"exec-1","status":"running","variables":{},"results":{},"completedSteps":["A"],"failedSteps":[],"errors":[],"logs":[],"history":[]}`

	rows := sqlmock.NewRows([]string{"payload"}).AddRow(payload)
	mock.ExpectQuery("SELECT payload FROM sessions").WithArgs("exec-1").WillReturnRows(rows)

	snap, err := store.Restore(context.Background(), "exec-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if snap.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", snap.Status)
	}
	if len(snap.CompletedSteps) != 1 || snap.CompletedSteps[0] != "A" {
		t.Fatalf("completedSteps = %v", snap.CompletedSteps)
	}
}

func TestSQLiteStoreRestoreMissing(t *testing.T) {
	mock, store := setupMockStore(t)
	mock.ExpectQuery("SELECT payload FROM sessions").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	snap, err := store.Restore(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if snap != nil {
		t.Fatalf("snap = %+v, want nil", snap)
	}
}
