package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bwkp-go/internal/archive"
	"bwkp-go/internal/bitwarden"
	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/config"
	"bwkp-go/internal/database"
	"bwkp-go/internal/encryption"
	"bwkp-go/internal/store"
)

// BWKPApp is the application layer between the CLI and the exporter.
// It constructs all dependencies from config, exposes high-level operations
// and finalizes the run record on Close.
type BWKPApp struct {
	cfg       *config.Config
	env       *config.Env
	ledger    bwkp.Ledger
	encryptor bwkp.Encryptor
	archives  []bwkp.Archive
	logger    bwkp.Logger
	clock     bwkp.Clock
	idgen     bwkp.IDGenerator
	run       *RunRecord
	logFile   *os.File
}

// ExportRequest holds the per-invocation export switches.
type ExportRequest struct {
	// Output is the destination file. Empty picks
	// <output_dir>/bitwarden_dump_<unix>.kdbx.
	Output string

	// DryRun walks the vault into an in-memory store and writes nothing.
	DryRun bool

	// AllowDuplicates overrides allow_duplicate_collection_membership when true.
	AllowDuplicates bool
}

// ExportResult describes a finished export.
type ExportResult struct {
	Path     string
	Summary  *bwkp.ExportSummary
	Archived []string
}

// NewBWKPApp creates a fully wired BWKPApp from the given config and
// environment. operation names the CLI command being run (e.g. "Export").
// The caller must call Close when done.
func NewBWKPApp(ctx context.Context, cfg *config.Config, env *config.Env, operation string) (*BWKPApp, error) {
	env.Apply(cfg)

	clock := bwkp.RealClock{}
	runID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	l := &slogAdapter{l: logger}

	ledger, err := database.NewLedgerFromConfig(cfg.Database, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}

	lastRun, err := ledger.MaxRunID()
	if err != nil {
		ledger.Close()
		logFile.Close()
		return nil, fmt.Errorf("reading run ledger: %w", err)
	}
	l.Debug("run ledger opened", "last_run", lastRun)

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		ledger.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	creds := archive.S3Credentials{AccessKeyID: env.S3AccessKeyID, SecretAccessKey: env.S3SecretAccessKey}
	var archives []bwkp.Archive
	for _, ac := range cfg.Archives {
		a, err := archive.NewArchiveFromConfig(ctx, ac, creds)
		if err != nil {
			ledger.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating archive %q: %w", ac.Name, err)
		}
		archives = append(archives, a)
	}

	return &BWKPApp{
		cfg:       cfg,
		env:       env,
		ledger:    ledger,
		encryptor: enc,
		archives:  archives,
		logger:    l,
		clock:     clock,
		idgen:     bwkp.UUIDGenerator{},
		run:       NewRunRecord(operation, ""),
		logFile:   logFile,
	}, nil
}

// persistRun saves the run to the ledger, giving it an auto-increment ID.
// Only commands that produce output call this.
func (a *BWKPApp) persistRun(parameters string) error {
	if a.run.Persisted() {
		return nil
	}
	a.run.Parameters = parameters
	r, err := a.ledger.CreateRun(a.run.Operation, parameters)
	if err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}
	a.run.ID = r.ID
	return nil
}

// Export writes the vault into a KDBX file and copies it to every archive.
func (a *BWKPApp) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	path := req.Output
	if path == "" {
		path = filepath.Join(a.cfg.Export.OutputDir, fmt.Sprintf("bitwarden_dump_%d.kdbx", a.clock.Now().Unix()))
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}

	kind := "kdbx"
	params := path
	if req.DryRun {
		kind = "memory"
		params = "dry-run"
	}
	if err := a.persistRun(params); err != nil {
		return nil, err
	}

	result, err := a.export(ctx, kind, path, req)
	if err != nil {
		a.run.Fail()
		// A partial save leaves the file behind; record where it went.
		if !req.DryRun && !errors.Is(err, bwkp.ErrDestinationExists) {
			if _, statErr := os.Stat(path); statErr == nil {
				a.run.Destination = path
			}
		}
		return nil, err
	}
	return result, nil
}

func (a *BWKPApp) export(ctx context.Context, kind, path string, req ExportRequest) (*ExportResult, error) {
	s, err := store.Open(kind, path, a.env.KDBXPassword, a.idgen, a.logger)
	if err != nil {
		return nil, err
	}

	client, err := a.openVaultClient()
	if err != nil {
		s.Discard()
		return nil, err
	}

	opts := bwkp.ExportOptions{
		SavePartialOnError: a.cfg.Export.SavePartialOnError,
		EmbedRawExport:     a.cfg.Export.EmbedRawExport,
		AttachmentWorkers:  a.cfg.Export.AttachmentWorkers,
	}
	if req.AllowDuplicates || a.cfg.Export.AllowDuplicateCollectionMembership {
		opts.Membership = bwkp.MembershipAllowDuplicates
	}

	summary, err := bwkp.NewExporter(client, s, a.logger, opts).Export(ctx)
	if err != nil {
		return nil, err
	}
	a.run.Entries = int64(summary.Entries)

	result := &ExportResult{Summary: summary}
	if req.DryRun {
		a.logger.Info("dry run complete, nothing written", "entries", summary.Entries)
		return result, nil
	}

	result.Path = path
	a.run.Destination = path

	archived, err := a.archiveOutput(ctx, path)
	result.Archived = archived
	if err != nil {
		return nil, err
	}
	return result, nil
}

// archiveOutput copies the finished file to every configured archive and
// records each copy. It stops at the first failure.
func (a *BWKPApp) archiveOutput(ctx context.Context, path string) ([]string, error) {
	var done []string
	key := filepath.Base(path)
	for _, ar := range a.archives {
		if err := a.putFile(ctx, ar, key, path); err != nil {
			return done, fmt.Errorf("archiving to %q: %w", ar.Name(), err)
		}
		if err := a.ledger.RecordArchiveCopy(a.run.ID, ar.Name(), key); err != nil {
			return done, fmt.Errorf("recording archive copy: %w", err)
		}
		a.logger.Info("export archived", "archive", ar.Name(), "key", key)
		done = append(done, ar.Name())
	}
	return done, nil
}

func (a *BWKPApp) putFile(ctx context.Context, ar bwkp.Archive, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat export: %w", err)
	}
	return ar.Put(ctx, key, f, info.Size())
}

// Dump copies the raw vault listings and attachments into dir. Files are
// encrypted when keys are configured unless plaintext is set. An empty dir
// picks <output_dir>/bitwarden_dump_<unix>.
func (a *BWKPApp) Dump(ctx context.Context, dir string, plaintext bool) (string, *bwkp.DumpSummary, error) {
	if dir == "" {
		dir = filepath.Join(a.cfg.Export.OutputDir, fmt.Sprintf("bitwarden_dump_%d", a.clock.Now().Unix()))
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving dump directory: %w", err)
	}
	if err := a.persistRun(dir); err != nil {
		return "", nil, err
	}

	var enc bwkp.Encryptor
	if !plaintext {
		if !a.encryptor.IsConfigured() {
			a.run.Fail()
			return "", nil, fmt.Errorf("%w: encryption keys are not set up (run `bwkp config keys` or pass --plaintext)", bwkp.ErrPrecondition)
		}
		enc = a.encryptor
	}

	client, err := a.openVaultClient()
	if err != nil {
		a.run.Fail()
		return "", nil, err
	}

	summary, err := bwkp.NewDumper(client, enc, a.logger, a.cfg.Export.AttachmentWorkers).Dump(ctx, dir)
	if err != nil {
		a.run.Fail()
		return "", nil, err
	}
	a.run.Destination = dir
	return dir, summary, nil
}

// openVaultClient builds the configured vault client, unlocking the dump key
// first when reading an encrypted snapshot.
func (a *BWKPApp) openVaultClient() (bwkp.VaultClient, error) {
	var dc bwkp.DecryptionContext
	if a.cfg.Vault.Type == "snapshot" && bitwarden.IsEncrypted(a.cfg.Vault.SnapshotDir) {
		if a.env.KeyPassphrase == "" {
			return nil, fmt.Errorf("%w: snapshot is encrypted and no key passphrase was given", bwkp.ErrPrecondition)
		}
		var err error
		dc, err = a.encryptor.Unlock(a.env.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking dump key: %w", err)
		}
	}

	client, err := bitwarden.NewVaultClientFromConfig(a.cfg.Vault, a.env.Session, dc, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	return client, nil
}

// History returns the most recent runs, newest first.
func (a *BWKPApp) History(limit int) ([]*bwkp.ExportRun, error) {
	return a.ledger.ListRuns(limit)
}

// ArchiveCopies returns where the output of run runID was archived.
func (a *BWKPApp) ArchiveCopies(runID int64) ([]*bwkp.ArchiveCopy, error) {
	return a.ledger.ListArchiveCopies(runID)
}

// SetupKeys generates the dump encryption key pair.
func (a *BWKPApp) SetupKeys(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return encryption.ErrKeysExist
	}
	return a.encryptor.Setup(passphrase)
}

// CheckArchives validates every configured archive and returns all failures
// joined.
func (a *BWKPApp) CheckArchives(ctx context.Context) error {
	var errs []error
	for _, ar := range a.archives {
		if err := ar.ValidateSetup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("archive %q: %w", ar.Name(), err))
			continue
		}
		a.logger.Info("archive ok", "archive", ar.Name())
	}
	return errors.Join(errs...)
}

// Retrieve writes an archived export to w.
func (a *BWKPApp) Retrieve(ctx context.Context, archiveName, key string, w io.Writer) error {
	for _, ar := range a.archives {
		if ar.Name() == archiveName {
			return ar.Get(ctx, key, w)
		}
	}
	return fmt.Errorf("no archive named %q", archiveName)
}

// Close finalizes the run and closes all resources. Persisted runs get their
// final status, destination and entry count written to the ledger.
func (a *BWKPApp) Close() error {
	var firstErr error

	if a.run.Persisted() {
		if err := a.ledger.FinishRun(a.run.ID, a.run.Status, a.run.Destination, a.run.Entries); err != nil {
			firstErr = fmt.Errorf("finishing run: %w", err)
		}
	}

	if err := a.ledger.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing ledger: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
