package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/okian/rinktrack/internal/domain/model"
)

type memoryRecord struct {
	meta Record // Snapshot left empty
	data []byte
}

// MemoryStore is an in-memory Store. Snapshots are held serialized so that
// callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	games  map[string][]memoryRecord
	cfg    config
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryStore{games: make(map[string][]memoryRecord), cfg: cfg}
}

func (s *MemoryStore) Save(ctx context.Context, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	hist := s.games[snap.GameID]
	if n := len(hist); n > 0 {
		last := hist[n-1].meta.Revision
		switch {
		case snap.Revision == last:
			return nil
		case snap.Revision < last:
			return ErrStaleRevision
		}
	}
	hist = append(hist, memoryRecord{
		meta: Record{GameID: snap.GameID, Revision: snap.Revision, SavedAt: s.cfg.now()},
		data: data,
	})
	if limit := s.cfg.historyLimit; limit > 0 && len(hist) > limit {
		hist = slices.Clone(hist[len(hist)-limit:])
	}
	s.games[snap.GameID] = hist
	return nil
}

func (s *MemoryStore) Latest(ctx context.Context, gameID string) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Snapshot{}, ErrClosed
	}
	hist := s.games[gameID]
	if len(hist) == 0 {
		return model.Snapshot{}, ErrNotFound
	}
	return decode(hist[len(hist)-1].data)
}

func (s *MemoryStore) History(ctx context.Context, gameID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	hist := s.games[gameID]
	out := make([]Record, 0, len(hist))
	for _, r := range hist {
		snap, err := decode(r.data)
		if err != nil {
			return nil, err
		}
		rec := r.meta
		rec.Snapshot = snap
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) Games(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]Summary, 0, len(s.games))
	for id, hist := range s.games {
		if len(hist) == 0 {
			continue
		}
		last := hist[len(hist)-1]
		snap, err := decode(last.data)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{GameID: id, Revision: last.meta.Revision, Status: snap.Status, SavedAt: last.meta.SavedAt})
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.GameID, b.GameID) })
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, gameID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.games, gameID)
	return nil
}

// Close marks the store closed; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
