package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bwkp-go/internal/bwkp"
)

// FileSystemArchive copies KDBX files into a local directory, typically a
// mounted NAS or removable drive.
type FileSystemArchive struct {
	name string
	root string
}

var _ bwkp.Archive = (*FileSystemArchive)(nil)

// NewFileSystemArchive creates an archive rooted at root, creating it if needed.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating archive root: %w", err)
	}
	return &FileSystemArchive{name: name, root: root}, nil
}

func (a *FileSystemArchive) Name() string { return a.name }

func (a *FileSystemArchive) Put(_ context.Context, key string, r io.Reader, size int64) error {
	dest, err := a.pathFor(key)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(a.root, ".tmp-*")
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

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", key, size, written)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("moving %s into place: %w", key, err)
	}

	success = true
	return nil
}

func (a *FileSystemArchive) Get(_ context.Context, key string, w io.Writer) error {
	src, err := a.pathFor(key)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("opening %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

// ValidateSetup checks the root is a writable directory.
func (a *FileSystemArchive) ValidateSetup(_ context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}

	probe, err := os.CreateTemp(a.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("archive root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// pathFor maps a key to a file directly under root. Keys are flat names.
func (a *FileSystemArchive) pathFor(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.root, key), nil
}
