package database

import (
	"database/sql"
	"fmt"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedger records export runs in SQLite.
type SQLiteLedger struct {
	db    *sql.DB
	path  string
	clock bwkp.Clock
}

var _ bwkp.Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger opens the database at path (or ":memory:") and applies
// pending migrations.
func NewSQLiteLedger(path string, clock bwkp.Clock) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db, path: path, clock: clock}, nil
}

// OpenConnection opens a SQLite connection with foreign keys enforced.
// A single connection is used so ":memory:" databases stay one database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}

func (s *SQLiteLedger) CreateRun(operation, parameters string) (*bwkp.ExportRun, error) {
	now := s.clock.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO export_runs (operation, parameters, status, started_at) VALUES (?, ?, ?, ?)`,
		operation, parameters, bwkp.RunRunning, now)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading run id: %w", err)
	}
	return &bwkp.ExportRun{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     bwkp.RunRunning,
		StartedAt:  now,
	}, nil
}

func (s *SQLiteLedger) FinishRun(id int64, status, destination string, entries int64) error {
	res, err := s.db.Exec(
		`UPDATE export_runs SET status = ?, destination = ?, entries = ?, finished_at = ? WHERE id = ?`,
		status, destination, entries, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %d: no such run", id)
	}
	return nil
}

func (s *SQLiteLedger) ListRuns(limit int) ([]*bwkp.ExportRun, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, status, destination, entries, started_at, finished_at
		 FROM export_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*bwkp.ExportRun
	for rows.Next() {
		var (
			run      bwkp.ExportRun
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.Operation, &run.Parameters, &run.Status,
			&run.Destination, &run.Entries, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteLedger) RecordArchiveCopy(runID int64, archive, key string) error {
	_, err := s.db.Exec(
		`INSERT INTO archive_copies (run_id, archive, object_key, created_at) VALUES (?, ?, ?, ?)`,
		runID, archive, key, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording archive copy for run %d: %w", runID, err)
	}
	return nil
}

func (s *SQLiteLedger) ListArchiveCopies(runID int64) ([]*bwkp.ArchiveCopy, error) {
	rows, err := s.db.Query(
		`SELECT run_id, archive, object_key, created_at FROM archive_copies WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing archive copies: %w", err)
	}
	defer rows.Close()

	var copies []*bwkp.ArchiveCopy
	for rows.Next() {
		var c bwkp.ArchiveCopy
		if err := rows.Scan(&c.RunID, &c.Archive, &c.Key, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning archive copy: %w", err)
		}
		copies = append(copies, &c)
	}
	return copies, rows.Err()
}

func (s *SQLiteLedger) MaxRunID() (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM export_runs`).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading max run id: %w", err)
	}
	return id.Int64, nil
}

// Path returns the database path.
func (s *SQLiteLedger) Path() string { return s.path }

func (s *SQLiteLedger) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
