package testutil

import (
	"testing"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/database"
)

// NewTestLedger opens a migrated in-memory ledger that is closed when the
// test ends.
func NewTestLedger(t *testing.T, clock bwkp.Clock) bwkp.Ledger {
	t.Helper()

	l, err := database.NewSQLiteLedger(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}
