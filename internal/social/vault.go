package social

import (
	"io"
	"time"
)

// SnapshotInfo describes one archived snapshot in a vault.
type SnapshotInfo struct {
	ID        string
	Size      int64
	CreatedAt time.Time
}

// Vault provides an interface for snapshot archive storage backends.
// Operations stream through io.Reader/io.Writer so archives never need to
// fit in memory.
type Vault interface {
	// PutSnapshot stores an archive under the given id.
	// size is the number of bytes that will be read from r.
	// Storing the same id twice overwrites the previous archive.
	PutSnapshot(id string, r io.Reader, size int64) error

	// GetSnapshot retrieves the archive with the given id and writes it to w.
	// Returns ErrNotFound if no such snapshot exists.
	GetSnapshot(id string, w io.Writer) error

	// ListSnapshots returns the stored snapshots, newest first.
	ListSnapshots() ([]SnapshotInfo, error)

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}
