// Package repository persists session snapshots to local durable storage.
// Every store keeps a bounded history of revisions per game so that a
// session can be restored from its latest autosave or inspected after a
// failed sync.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okian/rinktrack/internal/domain/model"
)

// Default store configuration constants.
const (
	defaultHistoryLimit = 20
)

// Record is one stored snapshot revision.
type Record struct {
	GameID   string
	Revision uint64
	SavedAt  time.Time
	Snapshot model.Snapshot
}

// Summary describes the latest stored state of one game.
type Summary struct {
	GameID   string       `json:"game_id"`
	Revision uint64       `json:"revision"`
	Status   model.Status `json:"status"`
	SavedAt  time.Time    `json:"saved_at"`
}

// Store provides read/write access to locally saved snapshots.
type Store interface {
	// Save writes snap as the newest revision of its game. Saving a
	// revision that is already stored is a no-op, so retries are safe.
	// Saving a revision older than the newest stored one fails with
	// ErrStaleRevision.
	Save(ctx context.Context, snap model.Snapshot) error

	// Latest returns the newest stored snapshot of a game.
	// Returns ErrNotFound if nothing was saved for gameID.
	Latest(ctx context.Context, gameID string) (model.Snapshot, error)

	// History returns the retained revisions of a game, oldest first.
	History(ctx context.Context, gameID string) ([]Record, error)

	// Games lists the latest stored revision of every game.
	Games(ctx context.Context) ([]Summary, error)

	// Delete removes every stored revision of a game.
	Delete(ctx context.Context, gameID string) error

	Close() error
}

// config holds options shared by the store implementations.
type config struct {
	historyLimit int
	now          func() time.Time
}

func defaultConfig() config {
	return config{historyLimit: defaultHistoryLimit, now: time.Now}
}

// encode validates and serializes a snapshot for storage.
func encode(snap model.Snapshot) ([]byte, error) {
	if strings.TrimSpace(snap.GameID) == "" {
		return nil, fmt.Errorf("%w: game id is required", ErrInvalidSnapshot)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return data, nil
}

func decode(data []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return snap, nil
}
