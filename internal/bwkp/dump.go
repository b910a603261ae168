package bwkp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// AttachmentsDir is the dump subdirectory holding attachment content as
	// <itemID>/<attachmentID>/<fileName>.
	AttachmentsDir = "attachments"

	// EncryptedSuffix is appended to every dump file written through an
	// Encryptor.
	EncryptedSuffix = ".age"
)

// DumpSummary counts what a dump wrote.
type DumpSummary struct {
	Listings    int
	Attachments int
}

// Dumper copies the raw vault listings and attachment content into a
// directory that the snapshot vault client can read back.
type Dumper struct {
	client    VaultClient
	encryptor Encryptor
	logger    Logger
	workers   int
}

// NewDumper creates a Dumper. A nil encryptor writes plaintext files.
func NewDumper(client VaultClient, encryptor Encryptor, logger Logger, workers int) *Dumper {
	return &Dumper{client: client, encryptor: encryptor, logger: logger, workers: workers}
}

// Dump writes the vault into dir. dir must not exist; content is built in a
// sibling temporary directory and renamed into place once complete.
func (d *Dumper) Dump(ctx context.Context, dir string) (*DumpSummary, error) {
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking dump directory: %w", err)
	}

	status, err := d.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking vault status: %w", err)
	}
	if status != StatusUnlocked {
		return nil, fmt.Errorf("%w (status %q)", ErrVaultNotUnlocked, status)
	}

	raw, ok := d.client.(RawSource)
	if !ok {
		return nil, fmt.Errorf("vault client does not provide raw listings")
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return nil, fmt.Errorf("creating dump parent directory: %w", err)
	}
	tmpDir, err := os.MkdirTemp(parent, ".bwkp-dump-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dump directory: %w", err)
	}
	success := false
	defer func() {
		if !success {
			os.RemoveAll(tmpDir)
		}
	}()

	summary := &DumpSummary{}
	var items []*Item
	for _, name := range RawListings {
		data, err := raw.RawListing(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("reading raw %s listing: %w", name, err)
		}
		if err := d.writeFile(filepath.Join(tmpDir, name+".json"), bytes.NewReader(data)); err != nil {
			return nil, err
		}
		summary.Listings++
		d.logger.Info("listing dumped", "listing", name, "bytes", len(data))

		if name == "items" {
			if err := json.Unmarshal(data, &items); err != nil {
				return nil, fmt.Errorf("decoding items listing: %w", err)
			}
		}
	}

	if err := fetchAttachments(ctx, d.client, items, d.workers, d.logger); err != nil {
		return nil, err
	}
	for _, item := range items {
		for _, a := range item.Attachments {
			dest := filepath.Join(tmpDir, AttachmentsDir, item.ID, a.ID, filepath.Base(a.FileName))
			if err := d.copyFile(a.LocalPath, dest); err != nil {
				return nil, fmt.Errorf("dumping attachment %s of item %s: %w", a.ID, item.ID, err)
			}
			summary.Attachments++
		}
	}

	if err := os.Rename(tmpDir, dir); err != nil {
		return nil, fmt.Errorf("moving dump into place: %w", err)
	}
	success = true
	d.logger.Info("dump complete", "dir", dir,
		"listings", summary.Listings, "attachments", summary.Attachments, "encrypted", d.encryptor != nil)
	return summary, nil
}

func (d *Dumper) copyFile(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()
	return d.writeFile(dest, f)
}

// writeFile writes r to path, encrypting into path+EncryptedSuffix when an
// encryptor is set.
func (d *Dumper) writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if d.encryptor != nil {
		path += EncryptedSuffix
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if d.encryptor != nil {
		err = d.encryptor.Encrypt(r, f)
	} else {
		_, err = io.Copy(f, r)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
