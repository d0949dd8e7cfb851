package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioma/spot-ingest/internal/spots"
)

func newStoreTest(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestRunFromResult(t *testing.T) {
	res := spots.Validate([]spots.RawRow{
		{"lat": "1.0", "lng": "2.0", "linea": "1", "posicion": "1", "lote_id": "A"},
		{"lat": "1.0", "lng": "2.0", "linea": "2", "posicion": "1", "lote_id": "A"},
		{"lat": ""},
	}, []spots.Lote{{ID: "A", Nombre: "A"}}, spots.DefaultOptions())

	run := RunFromResult("spots.csv", "9", "upload", res)

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, "spots.csv", run.Filename)
	assert.Equal(t, "9", run.FincaID)
	assert.Equal(t, 3, run.TotalRows)
	assert.Equal(t, 1, run.ValidRows)
	assert.Equal(t, 1, run.RemovedRows)
	assert.Equal(t, 1, run.DuplicateRows)
	assert.True(t, run.IsValid)
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newStoreTest(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS validation_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun(t *testing.T) {
	store, mock := newStoreTest(t)
	run := Run{
		ID:        uuid.New(),
		Filename:  "spots.csv",
		FincaID:   "9",
		Source:    "upload",
		TotalRows: 10,
		ValidRows: 8,
		IsValid:   true,
	}

	mock.ExpectExec("INSERT INTO validation_runs").
		WithArgs(run.ID, run.Filename, run.FincaID, run.Source,
			run.TotalRows, run.ValidRows, run.RemovedRows, run.DuplicateRows,
			run.ErrorCount, run.WarningCount, run.IsValid).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.RecordRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	store, mock := newStoreTest(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT id, filename, finca_id").
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "filename", "finca_id", "source", "total_rows", "valid_rows",
			"removed_rows", "duplicate_rows", "error_count", "warning_count",
			"is_valid", "created_at",
		}).AddRow(id, "spots.csv", "9", "upload", 10, 8, 1, 1, 0, 2, true, now))

	runs, err := store.ListRuns(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 8, runs[0].ValidRows)
	assert.True(t, runs[0].IsValid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	store, mock := newStoreTest(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{
			"count", "valid", "rows", "valid_rows", "removed", "dupes",
		}).AddRow(4, 3, 100, 80, 12, 8))

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunStats{TotalRuns: 4, ValidRuns: 3, TotalRows: 100,
		TotalValid: 80, TotalRemoved: 12, TotalDupes: 8}, st)
	require.NoError(t, mock.ExpectationsWereMet())
}
