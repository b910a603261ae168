package app

import "bwkp-go/internal/bwkp"

// RunRecord tracks the CLI run being executed. Runs start in memory with
// ID=0; commands that produce output persist them in the ledger, and Close
// writes the final status.
type RunRecord struct {
	ID          int64
	Operation   string
	Parameters  string
	Status      string
	Destination string
	Entries     int64
}

// NewRunRecord creates an in-memory run that will finish as a success
// unless Fail is called.
func NewRunRecord(operation, parameters string) *RunRecord {
	return &RunRecord{
		Operation:  operation,
		Parameters: parameters,
		Status:     bwkp.RunSuccess,
	}
}

// Persisted returns true if the run has been saved to the ledger.
func (r *RunRecord) Persisted() bool {
	return r.ID != 0
}

// Fail marks the run as failed.
func (r *RunRecord) Fail() {
	r.Status = bwkp.RunError
}
