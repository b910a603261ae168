package bwkp

import "time"

// Run statuses recorded in the ledger.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunError   = "error"
)

// ExportRun is one recorded CLI run that produced or tried to produce output.
type ExportRun struct {
	ID          int64
	Operation   string
	Parameters  string
	Status      string
	Destination string
	Entries     int64
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// ArchiveCopy records one successful archive upload of a run's output.
type ArchiveCopy struct {
	RunID     int64
	Archive   string
	Key       string
	CreatedAt time.Time
}

// Ledger records export and dump runs.
type Ledger interface {
	// CreateRun inserts a running record and returns it with its ID set.
	CreateRun(operation, parameters string) (*ExportRun, error)

	// FinishRun marks a run finished with status, destination and entry count.
	FinishRun(id int64, status, destination string, entries int64) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*ExportRun, error)

	// RecordArchiveCopy notes that the output of run was stored in archive.
	RecordArchiveCopy(runID int64, archive, key string) error

	// ListArchiveCopies returns the archive copies of one run.
	ListArchiveCopies(runID int64) ([]*ArchiveCopy, error)

	// MaxRunID returns the highest run ID, or 0 when there are none.
	MaxRunID() (int64, error)

	Close() error
}
