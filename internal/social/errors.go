package social

import (
	"errors"

	"plaza/internal/record"
)

// Sentinel errors for the store and service layers. Callers classify
// failures with errors.Is; everything else is an internal fault.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a create collided with an existing key.
	ErrAlreadyExists = errors.New("already exists")

	// ErrEmptyContent means user-supplied text was empty or whitespace-only.
	ErrEmptyContent = errors.New("empty content")

	// ErrBusy means a bounded wait for a record lock timed out.
	// Transient: safe to retry.
	ErrBusy = errors.New("record busy")

	// ErrConflict means an optimistic read-modify-write lost its version race
	// more times than the store was willing to retry. Transient.
	ErrConflict = errors.New("update conflict")

	// ErrCorruptRecord means a stored record failed to decode. It is a
	// per-record integrity fault and must never cascade to other records.
	ErrCorruptRecord = record.ErrCorrupt
)

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrConflict)
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
