package storage

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
)

var (
	// ErrConflict indicates the state changed since it was loaded.
	ErrConflict = errors.New("state revision conflict")
	// ErrCorruptState indicates the persisted state could not be decoded.
	ErrCorruptState = errors.New("persisted state is corrupt")
	// ErrUnreadable indicates the backend could not be read at all. The
	// revision is unknown, so callers must not save over it.
	ErrUnreadable = errors.New("state backend unreadable")
)

// Store persists the single process-wide AlertState.
//
// Load always returns a usable state: when nothing is stored, or the stored
// value cannot be read, it returns model.NewAlertState() alongside the error
// (nil when the state is simply absent). A value that exists but fails to
// decode yields ErrCorruptState with its real revision; a failed read yields
// ErrUnreadable. The revision is an opaque token that Save uses for
// compare-and-swap; backends without CAS return 0 and ignore it.
type Store interface {
	// Name returns the backend identifier (e.g., "file", "sqlite").
	Name() string

	// Load reads the state and its revision.
	Load(ctx context.Context) (model.AlertState, uint64, error)

	// Save rewrites the whole state. It returns ErrConflict when revision is
	// stale and the backend supports CAS.
	Save(ctx context.Context, state model.AlertState, revision uint64) (uint64, error)

	// Close releases resources.
	Close() error
}

// HistoryStore records the outcome of each check.
type HistoryStore interface {
	// RecordCheck appends one history row.
	RecordCheck(ctx context.Context, record model.CheckRecord) error

	// ListChecks returns the most recent rows, newest first.
	ListChecks(ctx context.Context, limit int) ([]model.CheckRecord, error)
}
