package bitwarden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bwkp-go/internal/bwkp"
)

// ErrEncryptedSnapshot is returned when a snapshot file is encrypted and the
// client has no decryption context.
var ErrEncryptedSnapshot = errors.New("snapshot is encrypted; unlock the dump key first")

// SnapshotClient reads a directory written by bwkp.Dumper instead of a live
// vault. A snapshot is always reported as unlocked.
type SnapshotClient struct {
	dir     string
	dc      bwkp.DecryptionContext
	workDir string
	logger  bwkp.Logger
}

var (
	_ bwkp.VaultClient = (*SnapshotClient)(nil)
	_ bwkp.RawSource   = (*SnapshotClient)(nil)
)

// NewSnapshotClient opens the snapshot in dir. dc may be nil for plaintext
// dumps. Decrypted attachments are written below workDir.
func NewSnapshotClient(dir string, dc bwkp.DecryptionContext, workDir string, logger bwkp.Logger) (*SnapshotClient, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot is not a directory: %s", dir)
	}
	return &SnapshotClient{dir: dir, dc: dc, workDir: workDir, logger: logger}, nil
}

// IsEncrypted reports whether the snapshot's listings were written through an
// encryptor.
func IsEncrypted(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "items.json"+bwkp.EncryptedSuffix))
	return err == nil
}

func (s *SnapshotClient) Status(context.Context) (bwkp.VaultStatus, error) {
	return bwkp.StatusUnlocked, nil
}

func (s *SnapshotClient) ListOrganizations(ctx context.Context) ([]*bwkp.Organization, error) {
	return decodeListing[bwkp.Organization](ctx, s, "organizations")
}

func (s *SnapshotClient) ListCollections(ctx context.Context) ([]*bwkp.Collection, error) {
	return decodeListing[bwkp.Collection](ctx, s, "collections")
}

func (s *SnapshotClient) ListItems(ctx context.Context) ([]*bwkp.Item, error) {
	return decodeListing[bwkp.Item](ctx, s, "items")
}

func (s *SnapshotClient) ListFolders(ctx context.Context) ([]*bwkp.Folder, error) {
	return decodeListing[bwkp.Folder](ctx, s, "folders")
}

func (s *SnapshotClient) RawListing(_ context.Context, name string) (json.RawMessage, error) {
	if !slices.Contains(bwkp.RawListings, name) {
		return nil, fmt.Errorf("unknown listing %q", name)
	}
	var buf bytes.Buffer
	if err := s.read(filepath.Join(s.dir, name+".json"), &buf); err != nil {
		return nil, fmt.Errorf("reading %s listing: %w", name, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// FetchAttachment returns the stored attachment. Encrypted attachments are
// decrypted into the work directory first.
func (s *SnapshotClient) FetchAttachment(_ context.Context, itemID, attachmentID string) (string, error) {
	dir := filepath.Join(s.dir, bwkp.AttachmentsDir, filepath.Base(itemID), filepath.Base(attachmentID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("attachment %s of item %s not in snapshot: %w", attachmentID, itemID, err)
	}
	if len(entries) != 1 || entries[0].IsDir() {
		return "", fmt.Errorf("attachment %s of item %s: expected one file in %s", attachmentID, itemID, dir)
	}

	name := entries[0].Name()
	src := filepath.Join(dir, name)
	if !strings.HasSuffix(name, bwkp.EncryptedSuffix) {
		return src, nil
	}

	dest := filepath.Join(s.workDir, filepath.Base(itemID), filepath.Base(attachmentID),
		strings.TrimSuffix(name, bwkp.EncryptedSuffix))
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return "", fmt.Errorf("creating attachment work directory: %w", err)
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("creating decrypted attachment: %w", err)
	}
	if err := s.decrypt(src, f); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("decrypting attachment %s: %w", attachmentID, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing decrypted attachment: %w", err)
	}
	return dest, nil
}

func decodeListing[T any](ctx context.Context, s *SnapshotClient, name string) ([]*T, error) {
	raw, err := s.RawListing(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []*T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return out, nil
}

// read copies path, or path+EncryptedSuffix decrypted, into w.
func (s *SnapshotClient) read(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.decrypt(path+bwkp.EncryptedSuffix, w)
}

func (s *SnapshotClient) decrypt(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if s.dc == nil {
		return ErrEncryptedSnapshot
	}
	return s.dc.Decrypt(f, w)
}
