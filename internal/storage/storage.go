// Package storage persists the history of validation runs to Postgres.
// The pipeline itself is stateless; the run log exists so operators can see
// what was uploaded, how much survived, and what was auto-corrected.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sioma/spot-ingest/internal/spots"
)

// Run is one recorded validation invocation.
type Run struct {
	ID            uuid.UUID `json:"id"`
	Filename      string    `json:"filename"`
	FincaID       string    `json:"finca_id"`
	Source        string    `json:"source"` // "upload" or "s3"
	TotalRows     int       `json:"total_rows"`
	ValidRows     int       `json:"valid_rows"`
	RemovedRows   int       `json:"removed_rows"`
	DuplicateRows int       `json:"duplicate_rows"`
	ErrorCount    int       `json:"error_count"`
	WarningCount  int       `json:"warning_count"`
	IsValid       bool      `json:"is_valid"`
	CreatedAt     time.Time `json:"created_at"`
}

// RunFromResult builds a Run record from a pipeline result.
func RunFromResult(filename, fincaID, source string, res spots.Result) Run {
	return Run{
		ID:            uuid.New(),
		Filename:      filename,
		FincaID:       fincaID,
		Source:        source,
		TotalRows:     res.Stats.TotalRows,
		ValidRows:     res.Stats.ValidRows,
		RemovedRows:   res.Stats.CleaningStats.RowsRemoved,
		DuplicateRows: res.Stats.CleaningStats.DuplicatesRemoved,
		ErrorCount:    len(res.Errors),
		WarningCount:  len(res.Warnings),
		IsValid:       res.IsValid,
	}
}

// RunStats aggregates the run log.
type RunStats struct {
	TotalRuns     int `json:"total_runs"`
	ValidRuns     int `json:"valid_runs"`
	TotalRows     int `json:"total_rows"`
	TotalValid    int `json:"total_valid_rows"`
	TotalRemoved  int `json:"total_removed_rows"`
	TotalDupes    int `json:"total_duplicate_rows"`
}

// Store is the Postgres-backed run log.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the run-log table when missing. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS validation_runs (
			id             UUID PRIMARY KEY,
			filename       TEXT NOT NULL,
			finca_id       TEXT NOT NULL DEFAULT '',
			source         TEXT NOT NULL DEFAULT 'upload',
			total_rows     INTEGER NOT NULL DEFAULT 0,
			valid_rows     INTEGER NOT NULL DEFAULT 0,
			removed_rows   INTEGER NOT NULL DEFAULT 0,
			duplicate_rows INTEGER NOT NULL DEFAULT 0,
			error_count    INTEGER NOT NULL DEFAULT 0,
			warning_count  INTEGER NOT NULL DEFAULT 0,
			is_valid       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure validation_runs schema: %w", err)
	}
	return nil
}

// RecordRun inserts one run into the log.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validation_runs
			(id, filename, finca_id, source, total_rows, valid_rows,
			 removed_rows, duplicate_rows, error_count, warning_count, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.Filename, run.FincaID, run.Source,
		run.TotalRows, run.ValidRows, run.RemovedRows, run.DuplicateRows,
		run.ErrorCount, run.WarningCount, run.IsValid,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, finca_id, source, total_rows, valid_rows,
		       removed_rows, duplicate_rows, error_count, warning_count,
		       is_valid, created_at
		FROM validation_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Filename, &r.FincaID, &r.Source,
			&r.TotalRows, &r.ValidRows, &r.RemovedRows, &r.DuplicateRows,
			&r.ErrorCount, &r.WarningCount, &r.IsValid, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats aggregates counters across the whole run log.
func (s *Store) Stats(ctx context.Context) (RunStats, error) {
	var st RunStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_valid),
		       COALESCE(SUM(total_rows), 0),
		       COALESCE(SUM(valid_rows), 0),
		       COALESCE(SUM(removed_rows), 0),
		       COALESCE(SUM(duplicate_rows), 0)
		FROM validation_runs`).Scan(
		&st.TotalRuns, &st.ValidRuns, &st.TotalRows,
		&st.TotalValid, &st.TotalRemoved, &st.TotalDupes)
	if err != nil {
		return RunStats{}, fmt.Errorf("run stats: %w", err)
	}
	return st, nil
}
