package autosave

import (
	"errors"
	"fmt"
)

// Sentinel kinds for autosave and sync errors. Match with errors.Is.
var (
	ErrLocalStorage = errors.New("local storage failure")
	ErrSync         = errors.New("remote sync failure")
	ErrSyncDisabled = errors.New("remote sync is not configured")
	ErrNoSnapshot   = errors.New("no session state to persist")
)

// LocalStorageError reports a failed local snapshot write. Tracking
// continues in memory; the write is retried on the next change.
type LocalStorageError struct {
	GameID   string
	Revision uint64
	Err      error
}

func (e *LocalStorageError) Error() string {
	return fmt.Sprintf("autosave %s@%d: %v", e.GameID, e.Revision, e.Err)
}

// Unwrap exposes ErrLocalStorage and the cause.
func (e *LocalStorageError) Unwrap() []error { return []error{ErrLocalStorage, e.Err} }

// SyncError reports a failed remote push. Local state is untouched and
// stays authoritative.
type SyncError struct {
	GameID   string
	Revision uint64
	Attempts int
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s@%d after %d attempt(s): %v", e.GameID, e.Revision, e.Attempts, e.Err)
}

// Unwrap exposes ErrSync and the cause.
func (e *SyncError) Unwrap() []error { return []error{ErrSync, e.Err} }
