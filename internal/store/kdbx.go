package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tobischo/gokeepasslib/v3"
	w "github.com/tobischo/gokeepasslib/v3/wrappers"

	"bwkp-go/internal/bwkp"
)

const (
	// RootGroupName names the top-level group of every store.
	RootGroupName = "Root"

	databaseName = "Bitwarden Export"

	keyTitle    = "Title"
	keyUserName = "UserName"
	keyPassword = "Password"
	keyURL      = "URL"
	keyNotes    = "Notes"
	keyOTP      = "otp"
)

// KDBXStore builds the tree in memory and writes a KDBX 4 file on Commit.
// Nothing touches the destination path before Commit.
type KDBXStore struct {
	treeStore
	path     string
	password string
	logger   bwkp.Logger
}

// OpenKDBX prepares a store that will be written to path, encrypted with
// password. It fails with bwkp.ErrDestinationExists if path already exists.
// The parent directory is created if needed.
func OpenKDBX(path, password string, idgen bwkp.IDGenerator, logger bwkp.Logger) (*KDBXStore, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: kdbx password must not be empty", bwkp.ErrPrecondition)
	}
	if err := checkAbsent(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &KDBXStore{
		treeStore: newTreeStore(RootGroupName, idgen),
		path:      path,
		password:  password,
		logger:    logger,
	}, nil
}

// Path returns the destination file path.
func (s *KDBXStore) Path() string { return s.path }

// Commit encodes the tree into a temp file and links it into place. It never
// replaces an existing destination.
func (s *KDBXStore) Commit() error {
	if s.closed {
		return fmt.Errorf("commit: %w", errClosed)
	}
	s.closed = true

	db := gokeepasslib.NewDatabase(gokeepasslib.WithDatabaseKDBXVersion4())
	db.Credentials = gokeepasslib.NewPasswordCredentials(s.password)
	db.Content.Meta.DatabaseName = databaseName
	db.Content.Root = &gokeepasslib.RootData{
		Groups: []gokeepasslib.Group{buildGroup(db, s.root)},
	}
	if err := db.LockProtectedEntries(); err != nil {
		return fmt.Errorf("locking protected entries: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(s.path), ".bwkp-*.kdbx.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := gokeepasslib.NewEncoder(tmpFile).Encode(db); err != nil {
		tmpFile.Close()
		return fmt.Errorf("encoding kdbx: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	// Link fails if the destination appeared since OpenKDBX, where Rename
	// would replace it.
	if err := os.Link(tmpPath, s.path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", bwkp.ErrDestinationExists, s.path)
		}
		return fmt.Errorf("moving kdbx into place: %w", err)
	}
	success = true
	if err := os.Remove(tmpPath); err != nil {
		s.logger.Warn("removing temp file", "path", tmpPath, "error", err)
	}

	s.logger.Info("kdbx written", "path", s.path)
	return nil
}

// Discard drops the in-memory tree. The destination path is never created.
func (s *KDBXStore) Discard() error {
	s.closed = true
	return nil
}

func checkAbsent(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%w: %s", bwkp.ErrDestinationExists, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking destination: %w", err)
	}
	return nil
}

func buildGroup(db *gokeepasslib.Database, g *bwkp.Group) gokeepasslib.Group {
	kg := gokeepasslib.NewGroup()
	kg.Name = g.Name
	kg.Notes = g.Notes
	for _, e := range g.Entries() {
		kg.Entries = append(kg.Entries, buildEntry(db, e))
	}
	for _, child := range g.Groups() {
		kg.Groups = append(kg.Groups, buildGroup(db, child))
	}
	return kg
}

func buildEntry(db *gokeepasslib.Database, e *bwkp.Entry) gokeepasslib.Entry {
	ke := gokeepasslib.NewEntry()
	ke.Values = append(ke.Values,
		value(keyTitle, e.Title, false),
		value(keyUserName, e.UserName, false),
		value(keyPassword, e.Password, true),
		value(keyURL, e.URL, false),
		value(keyNotes, e.Notes, false),
	)
	if e.OTP != "" {
		ke.Values = append(ke.Values, value(keyOTP, e.OTP, true))
	}
	for _, f := range e.Fields() {
		ke.Values = append(ke.Values, value(f.Name, f.Value, f.Protected))
	}
	for _, a := range e.Attachments() {
		binary := db.AddBinary(a.Data)
		ke.Binaries = append(ke.Binaries, binary.CreateReference(a.FileName))
	}
	return ke
}

func value(key, content string, protected bool) gokeepasslib.ValueData {
	v := gokeepasslib.ValueData{Key: key, Value: gokeepasslib.V{Content: content}}
	if protected {
		v.Value.Protected = w.NewBoolWrapper(true)
	}
	return v
}

var _ bwkp.Store = (*KDBXStore)(nil)
