package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"plaza/internal/social"
)

// MemoryVault is an in-memory implementation of the Vault interface, useful
// for testing. Safe for concurrent use.
type MemoryVault struct {
	name      string
	mu        sync.RWMutex
	snapshots map[string][]byte
	stored    map[string]time.Time
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string][]byte),
		stored:    make(map[string]time.Time),
	}
}

// PutSnapshot stores an archive under the given id, overwriting any
// previous archive with the same id.
func (m *MemoryVault) PutSnapshot(id string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[id] = data
	m.stored[id] = time.Now()
	return nil
}

// GetSnapshot retrieves the archive with the given id.
func (m *MemoryVault) GetSnapshot(id string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[id]
	if !ok {
		return fmt.Errorf("snapshot %q: %w", id, social.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the stored snapshots, newest first.
func (m *MemoryVault) ListSnapshots() ([]social.SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]social.SnapshotInfo, 0, len(m.snapshots))
	for id, data := range m.snapshots {
		out = append(out, social.SnapshotInfo{
			ID:        id,
			Size:      int64(len(data)),
			CreatedAt: m.stored[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup() error { return nil }

// Compile-time check that MemoryVault implements social.Vault
var _ social.Vault = (*MemoryVault)(nil)
