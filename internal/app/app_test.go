package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/config"
	"bwkp-go/internal/testutil"
)

// newTestConfig returns a config reading an encrypted snapshot of the sample
// vault and archiving into a local directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()

	snapDir := filepath.Join(base, "snapshot")
	dumper := bwkp.NewDumper(testutil.NewSampleVault(t), testutil.NewTestEncryptor(), bwkp.NewNopLogger(), 1)
	if _, err := dumper.Dump(context.Background(), snapDir); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	cfg := config.NewConfig(base)
	cfg.Encryption.Type = "test"
	cfg.Vault = config.VaultConfig{
		Type:          "snapshot",
		SnapshotDir:   snapDir,
		AttachmentDir: filepath.Join(base, "work"),
	}
	cfg.Archives = []config.ArchiveConfig{
		{Type: "filesystem", Name: "local", FSRoot: filepath.Join(base, "archive")},
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, env *config.Env, operation string) *BWKPApp {
	t.Helper()
	a, err := NewBWKPApp(context.Background(), cfg, env, operation)
	if err != nil {
		t.Fatalf("NewBWKPApp() error = %v", err)
	}
	return a
}

func TestBWKPApp_Export(t *testing.T) {
	ctx := context.Background()

	t.Run("writes, archives and records the run", func(t *testing.T) {
		cfg := newTestConfig(t)
		env := &config.Env{KDBXPassword: "pw", KeyPassphrase: "dump-key"}
		out := filepath.Join(cfg.BaseDir, "out", "vault.kdbx")

		a := newTestApp(t, cfg, env, "Export")
		res, err := a.Export(ctx, ExportRequest{Output: out})
		if err != nil {
			a.Close()
			t.Fatalf("Export() error = %v", err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		if res.Path != out {
			t.Errorf("Path = %q, want %q", res.Path, out)
		}
		if res.Summary.Entries != 5 {
			t.Errorf("entries = %d, want 5", res.Summary.Entries)
		}
		if _, err := os.Stat(out); err != nil {
			t.Errorf("output file missing: %v", err)
		}
		if len(res.Archived) != 1 || res.Archived[0] != "local" {
			t.Errorf("Archived = %v, want [local]", res.Archived)
		}

		h := newTestApp(t, cfg, &config.Env{}, "History")
		defer h.Close()

		runs, err := h.History(10)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("got %d runs, want 1", len(runs))
		}
		run := runs[0]
		if run.Operation != "Export" || run.Status != bwkp.RunSuccess || run.Destination != out || run.Entries != 5 {
			t.Errorf("run = %+v", run)
		}
		if run.FinishedAt == nil {
			t.Error("run has no finish time")
		}

		copies, err := h.ArchiveCopies(run.ID)
		if err != nil {
			t.Fatalf("ArchiveCopies() error = %v", err)
		}
		if len(copies) != 1 || copies[0].Archive != "local" || copies[0].Key != "vault.kdbx" {
			t.Errorf("copies = %+v", copies)
		}

		var buf bytes.Buffer
		if err := h.Retrieve(ctx, "local", "vault.kdbx", &buf); err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		original, _ := os.ReadFile(out)
		if !bytes.Equal(buf.Bytes(), original) {
			t.Error("archived copy differs from output")
		}
	})

	t.Run("default output name", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Archives = nil
		env := &config.Env{KDBXPassword: "pw", KeyPassphrase: "dump-key"}

		a := newTestApp(t, cfg, env, "Export")
		defer a.Close()

		res, err := a.Export(ctx, ExportRequest{})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if filepath.Dir(res.Path) != cfg.Export.OutputDir {
			t.Errorf("output dir = %q, want %q", filepath.Dir(res.Path), cfg.Export.OutputDir)
		}
		matched, _ := filepath.Match("bitwarden_dump_*.kdbx", filepath.Base(res.Path))
		if !matched {
			t.Errorf("output name = %q", filepath.Base(res.Path))
		}
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		cfg := newTestConfig(t)
		env := &config.Env{KeyPassphrase: "dump-key"}
		out := filepath.Join(cfg.BaseDir, "dry.kdbx")

		a := newTestApp(t, cfg, env, "Export")
		defer a.Close()

		res, err := a.Export(ctx, ExportRequest{Output: out, DryRun: true, AllowDuplicates: true})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if res.Path != "" || len(res.Archived) != 0 {
			t.Errorf("dry run result = %+v", res)
		}
		if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("dry run created %s", out)
		}
	})

	t.Run("missing password fails the run", func(t *testing.T) {
		cfg := newTestConfig(t)
		env := &config.Env{KeyPassphrase: "dump-key"}

		a := newTestApp(t, cfg, env, "Export")
		_, err := a.Export(ctx, ExportRequest{Output: filepath.Join(cfg.BaseDir, "x.kdbx")})
		if !errors.Is(err, bwkp.ErrPrecondition) {
			t.Errorf("Export() error = %v, want ErrPrecondition", err)
		}
		a.Close()

		h := newTestApp(t, cfg, &config.Env{}, "History")
		defer h.Close()
		runs, _ := h.History(1)
		if len(runs) != 1 || runs[0].Status != bwkp.RunError {
			t.Errorf("runs = %+v, want one failed run", runs)
		}
	})

	t.Run("encrypted snapshot needs passphrase", func(t *testing.T) {
		cfg := newTestConfig(t)
		env := &config.Env{KDBXPassword: "pw"}

		a := newTestApp(t, cfg, env, "Export")
		defer a.Close()

		_, err := a.Export(ctx, ExportRequest{Output: filepath.Join(cfg.BaseDir, "x.kdbx")})
		if !errors.Is(err, bwkp.ErrPrecondition) {
			t.Errorf("Export() error = %v, want ErrPrecondition", err)
		}
	})

	t.Run("existing output is refused", func(t *testing.T) {
		cfg := newTestConfig(t)
		env := &config.Env{KDBXPassword: "pw", KeyPassphrase: "dump-key"}
		out := filepath.Join(cfg.BaseDir, "taken.kdbx")
		if err := os.WriteFile(out, []byte("keep me"), 0600); err != nil {
			t.Fatal(err)
		}

		a := newTestApp(t, cfg, env, "Export")
		defer a.Close()

		if _, err := a.Export(ctx, ExportRequest{Output: out}); !errors.Is(err, bwkp.ErrDestinationExists) {
			t.Errorf("Export() error = %v, want ErrDestinationExists", err)
		}
		data, _ := os.ReadFile(out)
		if string(data) != "keep me" {
			t.Error("existing file was modified")
		}
	})
}

func TestBWKPApp_Dump(t *testing.T) {
	ctx := context.Background()

	t.Run("re-dumps a snapshot encrypted", func(t *testing.T) {
		cfg := newTestConfig(t)
		env := &config.Env{KeyPassphrase: "dump-key"}
		dir := filepath.Join(cfg.BaseDir, "redump")

		a := newTestApp(t, cfg, env, "Dump")
		defer a.Close()

		got, summary, err := a.Dump(ctx, dir, false)
		if err != nil {
			t.Fatalf("Dump() error = %v", err)
		}
		if got != dir {
			t.Errorf("Dump() dir = %q, want %q", got, dir)
		}
		if summary.Listings != 4 || summary.Attachments != 1 {
			t.Errorf("summary = %+v", *summary)
		}
		if _, err := os.Stat(filepath.Join(dir, "items.json"+bwkp.EncryptedSuffix)); err != nil {
			t.Errorf("encrypted items listing missing: %v", err)
		}
	})

	t.Run("plaintext dump", func(t *testing.T) {
		cfg := newTestConfig(t)
		env := &config.Env{KeyPassphrase: "dump-key"}
		dir := filepath.Join(cfg.BaseDir, "plain")

		a := newTestApp(t, cfg, env, "Dump")
		defer a.Close()

		if _, _, err := a.Dump(ctx, dir, true); err != nil {
			t.Fatalf("Dump() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "items.json")); err != nil {
			t.Errorf("plaintext items listing missing: %v", err)
		}
	})
}

func TestBWKPApp_CheckArchives(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Archives = append(cfg.Archives, config.ArchiveConfig{Type: "memory", Name: "mem"})

	a := newTestApp(t, cfg, &config.Env{}, "CheckArchives")
	defer a.Close()

	if err := a.CheckArchives(context.Background()); err != nil {
		t.Errorf("CheckArchives() error = %v", err)
	}
	if err := a.Retrieve(context.Background(), "missing", "k", &bytes.Buffer{}); err == nil {
		t.Error("Retrieve() from unknown archive expected error")
	}
}
