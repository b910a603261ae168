package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"bwkp-go/internal/bwkp"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("archive object not found")

// MemoryArchive keeps objects in memory. Safe for concurrent use.
type MemoryArchive struct {
	name    string
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ bwkp.Archive = (*MemoryArchive)(nil)

func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{name: name, objects: make(map[string][]byte)}
}

func (m *MemoryArchive) Name() string { return m.name }

func (m *MemoryArchive) Put(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", key, size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemoryArchive) Get(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

func (m *MemoryArchive) ValidateSetup(_ context.Context) error { return nil }

// Keys returns the stored keys in sorted order.
func (m *MemoryArchive) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
