package database

import (
	"fmt"
	"os"
	"path/filepath"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/config"
)

// ledgerFileName is the ledger database inside data_dir.
const ledgerFileName = "bwkp.db"

// NewLedgerFromConfig opens the run ledger described by cfg.
func NewLedgerFromConfig(cfg config.DatabaseConfig, clock bwkp.Clock) (bwkp.Ledger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteLedger(filepath.Join(cfg.DataDir, ledgerFileName), clock)
	case "memory":
		return NewSQLiteLedger(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
