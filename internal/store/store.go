// Package store is the persistent layer shared by the pipeline stages: a
// single SQLite database holding aggregate rows, quality reports and model
// artifacts. All SQL in the repository lives here; stages own their tables
// exclusively (aggregator writes aggregates and quality, modeler writes
// artifacts, the dashboard only reads).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperrors "cagedcli/internal/errors"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewStorageError("create store directory", err).
				WithContext("path", path)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, apperrors.NewStorageError("open store", err).WithContext("path", path)
	}
	// Stages never write concurrently; one connection avoids SQLITE_BUSY
	// surprises under the WAL.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("initialize schema", err).
			WithContext("path", path)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the schema idempotently.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS aggregate_rows (
		period          TEXT NOT NULL,  -- yyyy-mm
		dimension       TEXT NOT NULL,
		category        TEXT NOT NULL,
		admissions      INTEGER NOT NULL,
		wage_sum        REAL NOT NULL,
		age_sum         REAL NOT NULL,
		mean_wage       REAL,           -- NULL when low confidence
		mean_age        REAL,
		low_confidence  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (period, dimension, category)
	);
	CREATE INDEX IF NOT EXISTS idx_aggregate_dimension
		ON aggregate_rows (dimension, category, period);

	CREATE TABLE IF NOT EXISTS quality_reports (
		period              TEXT PRIMARY KEY,
		total_rows          INTEGER NOT NULL,
		included_rows       INTEGER NOT NULL,
		outlier_rows        INTEGER NOT NULL,
		wage_median         REAL NOT NULL,
		wage_p90            REAL NOT NULL,
		unknown_gender      REAL NOT NULL,
		unknown_race        REAL NOT NULL,
		unknown_education   REAL NOT NULL,
		unknown_disability  REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS regression_groups (
		period     TEXT NOT NULL,
		dimension  TEXT NOT NULL,
		category   TEXT NOT NULL,
		education  TEXT NOT NULL,
		region     TEXT NOT NULL,
		admissions INTEGER NOT NULL,
		wage_sum   REAL NOT NULL,
		age_sum    REAL NOT NULL,
		PRIMARY KEY (period, dimension, category, education, region)
	);

	CREATE TABLE IF NOT EXISTS model_runs (
		id          TEXT PRIMARY KEY,   -- uuid
		started_at  TEXT NOT NULL,
		from_period TEXT NOT NULL,
		to_period   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS regression_results (
		run_id     TEXT NOT NULL,
		dimension  TEXT NOT NULL,
		status     TEXT NOT NULL,
		baseline   TEXT NOT NULL,
		n          INTEGER NOT NULL,
		r_squared  REAL NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, dimension)
	);

	CREATE TABLE IF NOT EXISTS regression_terms (
		run_id     TEXT NOT NULL,
		dimension  TEXT NOT NULL,
		name       TEXT NOT NULL,
		estimate   REAL NOT NULL,
		std_err    REAL NOT NULL,
		t_value    REAL NOT NULL,
		p_value    REAL NOT NULL,
		ci_low     REAL NOT NULL,
		ci_high    REAL NOT NULL,
		PRIMARY KEY (run_id, dimension, name)
	);

	CREATE TABLE IF NOT EXISTS projections (
		run_id     TEXT NOT NULL,
		dimension  TEXT NOT NULL,
		category   TEXT NOT NULL,
		status     TEXT NOT NULL,
		p INTEGER NOT NULL DEFAULT 0,
		d INTEGER NOT NULL DEFAULT 0,
		q INTEGER NOT NULL DEFAULT 0,
		sp INTEGER NOT NULL DEFAULT 0,
		sd INTEGER NOT NULL DEFAULT 0,
		sq INTEGER NOT NULL DEFAULT 0,
		m  INTEGER NOT NULL DEFAULT 0,
		aic REAL NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, dimension, category)
	);

	CREATE TABLE IF NOT EXISTS projection_points (
		run_id    TEXT NOT NULL,
		dimension TEXT NOT NULL,
		category  TEXT NOT NULL,
		period    TEXT NOT NULL,
		value     REAL NOT NULL,
		low       REAL,
		high      REAL,
		forecast  INTEGER NOT NULL,
		PRIMARY KEY (run_id, dimension, category, period)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
