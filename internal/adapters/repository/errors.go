package repository

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrNotFound        = errors.New("snapshot not found")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrStaleRevision   = errors.New("snapshot revision is older than the stored one")
	ErrCorrupt         = errors.New("stored snapshot is corrupt")
	ErrClosed          = errors.New("snapshot store is closed")
)
