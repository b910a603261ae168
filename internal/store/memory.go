package store

import (
	"fmt"

	"bwkp-go/internal/bwkp"
)

// MemoryStore keeps the tree in memory only. Commit just closes it, which
// makes it useful for dry runs and tests.
type MemoryStore struct {
	treeStore
	committed bool
	discarded bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(idgen bwkp.IDGenerator) *MemoryStore {
	return &MemoryStore{treeStore: newTreeStore(RootGroupName, idgen)}
}

func (m *MemoryStore) Commit() error {
	if m.closed {
		return fmt.Errorf("commit: %w", errClosed)
	}
	m.closed = true
	m.committed = true
	return nil
}

func (m *MemoryStore) Discard() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.discarded = true
	return nil
}

// Committed reports whether Commit was called.
func (m *MemoryStore) Committed() bool { return m.committed }

// Discarded reports whether Discard was called before any Commit.
func (m *MemoryStore) Discarded() bool { return m.discarded }

var _ bwkp.Store = (*MemoryStore)(nil)
