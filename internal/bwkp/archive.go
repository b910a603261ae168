package bwkp

import (
	"context"
	"io"
)

// Archive is an off-host copy target for finished KDBX files. Put streams
// so large databases are never held in memory twice.
type Archive interface {
	// Name identifies the archive in logs and the run ledger.
	Name() string

	// Put stores size bytes read from r under key, replacing any existing
	// object with that key.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup checks the archive is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
