package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bwkp-go/internal/config"
)

func TestNewLedgerFromConfig(t *testing.T) {
	clock := &fixedClock{t: time.Now()}

	t.Run("memory", func(t *testing.T) {
		l, err := NewLedgerFromConfig(config.DatabaseConfig{Type: "memory"}, clock)
		if err != nil {
			t.Fatalf("NewLedgerFromConfig() error = %v", err)
		}
		l.Close()
	})

	t.Run("sqlite creates data dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db")
		l, err := NewLedgerFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir}, clock)
		if err != nil {
			t.Fatalf("NewLedgerFromConfig() error = %v", err)
		}
		defer l.Close()
		if _, err := os.Stat(filepath.Join(dir, ledgerFileName)); err != nil {
			t.Errorf("ledger file not created: %v", err)
		}
	})

	t.Run("sqlite reopens existing ledger", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: dir}
		l, err := NewLedgerFromConfig(cfg, clock)
		if err != nil {
			t.Fatalf("NewLedgerFromConfig() error = %v", err)
		}
		l.CreateRun("Export", "")
		l.Close()

		l, err = NewLedgerFromConfig(cfg, clock)
		if err != nil {
			t.Fatalf("second NewLedgerFromConfig() error = %v", err)
		}
		defer l.Close()
		if max, _ := l.MaxRunID(); max != 1 {
			t.Errorf("MaxRunID() = %d, want 1", max)
		}
	})

	t.Run("sqlite without data_dir", func(t *testing.T) {
		if _, err := NewLedgerFromConfig(config.DatabaseConfig{Type: "sqlite"}, clock); err == nil {
			t.Error("NewLedgerFromConfig() expected error for missing data_dir")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewLedgerFromConfig(config.DatabaseConfig{Type: "postgres"}, clock); err == nil {
			t.Error("NewLedgerFromConfig() expected error for unknown type")
		}
	})
}
