// Package autosave persists a tracking session to local storage after
// every burst of changes and pushes full snapshots to the remote backend.
//
// Local writes follow a small state machine driven by change
// notifications and a quiet-period timer:
//
//	idle --change--> pending --quiet period--> writing --done--> idle
//	                    ^                         |
//	                    +------ changed while ----+
//	                            writing
//
// Snapshots are read after each mutation completes, so persistence never
// blocks or reorders tracker mutations.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/rinktrack/internal/adapters/repository"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
	"github.com/okian/rinktrack/pkg/metrics"
)

// Default controller configuration constants.
const (
	defaultQuietPeriod = time.Second
	maxWaitFactor      = 10 // a pending write waits at most quiet*maxWaitFactor
)

// Remote pushes a full session snapshot to the backend. Implementations
// retry internally and report how many attempts were made.
type Remote interface {
	Push(ctx context.Context, snap model.Snapshot) (attempts int, err error)
}

// State is the local write state.
type State int

const (
	StateIdle State = iota
	StatePending
	StateWriting
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateWriting:
		return "writing"
	}
	return "idle"
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name. Unknown names read as idle.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = StatePending
	case "writing":
		*s = StateWriting
	default:
		*s = StateIdle
	}
	return nil
}

// SyncReport describes one completed remote sync.
type SyncReport struct {
	GameID     string        `json:"game_id"`
	Revision   uint64        `json:"revision"`
	Attempts   int           `json:"attempts"`
	SyncedAt   time.Time     `json:"synced_at"`
	Duration   time.Duration `json:"duration"`
	Superseded bool          `json:"superseded,omitempty"`
}

// Status is a point-in-time view of persistence progress.
type Status struct {
	State          State     `json:"state"`
	LatestRevision uint64    `json:"latest_revision"`
	SavedRevision  uint64    `json:"saved_revision"`
	SyncedRevision uint64    `json:"synced_revision"`
	LastSavedAt    time.Time `json:"last_saved_at"`
	LastSyncedAt   time.Time `json:"last_synced_at"`
	LastSaveError  string    `json:"last_save_error,omitempty"`
	LastSyncError  string    `json:"last_sync_error,omitempty"`
}

// Controller observes one session and persists it.
type Controller struct {
	store        repository.Store
	remote       Remote
	clock        clockwork.Clock
	quiet        time.Duration
	syncInterval time.Duration
	warn         func(error)
	logger       logger.Logger

	mu           sync.Mutex
	state        State
	dirty        bool
	pendingSince time.Time
	latest       *model.Snapshot
	saved        bool
	savedRev     uint64
	savedAt      time.Time
	saveErr      error
	synced       bool
	syncedRev    uint64
	syncedAt     time.Time
	syncErr      error
	syncTicket   uint64 // last issued
	syncDone     uint64 // highest ticket whose result was kept

	writeMu sync.Mutex // serializes store writes

	changed      chan struct{}
	shutdown     chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewController creates a controller writing to store.
func NewController(store repository.Store, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		clock:    clockwork.NewRealClock(),
		quiet:    defaultQuietPeriod,
		changed:  make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("autosave"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed records snap as already persisted, e.g. after restoring a session
// from the local store.
func (c *Controller) Seed(snap model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = &snap
	c.saved = true
	c.savedRev = snap.Revision
}

// OnStateChange records the newest snapshot and schedules a write. It
// never blocks.
func (c *Controller) OnStateChange(snap model.Snapshot) {
	c.mu.Lock()
	c.latest = &snap
	switch c.state {
	case StateIdle:
		c.state = StatePending
		c.pendingSince = c.clock.Now()
	case StateWriting:
		c.dirty = true
	}
	c.mu.Unlock()

	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Run drives debounced writes and periodic sync until ctx is canceled or
// Shutdown is called. Pending state is flushed before Run returns.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)

	debounce := c.clock.NewTimer(c.quiet)
	stopAndDrainTimer(debounce)

	var syncC <-chan time.Time
	if c.remote != nil && c.syncInterval > 0 {
		ticker := c.clock.NewTicker(c.syncInterval)
		defer ticker.Stop()
		syncC = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			c.finalFlush(context.WithoutCancel(ctx))
			return
		case <-c.shutdown:
			c.finalFlush(ctx)
			return
		case <-c.changed:
			switch c.nextWrite() {
			case writeLater:
				stopAndDrainTimer(debounce)
				debounce.Reset(c.quiet)
			case writeNow:
				stopAndDrainTimer(debounce)
				if c.writePending(ctx) {
					debounce.Reset(c.quiet)
				}
			}
		case <-debounce.Chan():
			if c.writePending(ctx) {
				debounce.Reset(c.quiet)
			}
		case <-syncC:
			c.periodicSync(ctx)
		}
	}
}

// Shutdown stops Run after a final flush.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() { close(c.shutdown) })
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

type writeTiming int

const (
	writeNone writeTiming = iota
	writeLater
	writeNow
)

// nextWrite decides how a change affects the quiet period. A write that
// has been pending longer than the maximum wait goes out immediately.
func (c *Controller) nextWrite() writeTiming {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state != StatePending:
		return writeNone
	case c.clock.Since(c.pendingSince) >= c.quiet*maxWaitFactor:
		return writeNow
	}
	return writeLater
}

// writePending writes the newest snapshot if a write is pending. It reports
// whether changes arrived during the write and another one is pending.
func (c *Controller) writePending(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StatePending || c.latest == nil {
		c.mu.Unlock()
		return false
	}
	snap := *c.latest
	c.state = StateWriting
	c.dirty = false
	c.mu.Unlock()

	_ = c.write(ctx, snap)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty {
		c.dirty = false
		c.state = StatePending
		c.pendingSince = c.clock.Now()
		return true
	}
	c.state = StateIdle
	return false
}

// FlushLocal writes the newest snapshot now, bypassing the quiet period.
func (c *Controller) FlushLocal(ctx context.Context) error {
	c.mu.Lock()
	if c.latest == nil {
		c.mu.Unlock()
		return nil
	}
	snap := *c.latest
	if c.state == StatePending {
		c.state = StateIdle
	}
	c.mu.Unlock()
	return c.write(ctx, snap)
}

func (c *Controller) write(ctx context.Context, snap model.Snapshot) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	skip := c.saved && snap.Revision <= c.savedRev
	c.mu.Unlock()
	if skip {
		return nil
	}

	start := time.Now()
	err := c.store.Save(ctx, snap)
	if errors.Is(err, repository.ErrStaleRevision) {
		// A newer revision is already on disk.
		err = nil
	}
	metrics.RecordAutosave(float64(time.Since(start).Microseconds())/1000, err)

	c.mu.Lock()
	if err != nil {
		err = &LocalStorageError{GameID: snap.GameID, Revision: snap.Revision, Err: err}
		c.saveErr = err
		c.mu.Unlock()
		metrics.RecordErrorByComponent("autosave", "local_storage")
		c.logger.Warn(ctx, "local save failed; tracking continues in memory",
			logger.String("game", snap.GameID),
			logger.Uint64("revision", snap.Revision),
			logger.Error(err),
		)
		c.notify(err)
		return err
	}
	if !c.saved || snap.Revision > c.savedRev {
		c.saved, c.savedRev = true, snap.Revision
	}
	c.savedAt = c.clock.Now()
	c.saveErr = nil
	c.mu.Unlock()
	c.logger.Debug(ctx, "snapshot saved", logger.String("game", snap.GameID), logger.Uint64("revision", snap.Revision))
	return nil
}

// SyncRemote pushes the complete current snapshot to the backend. A
// result that completes after a newer sync is discarded and reported as
// superseded.
func (c *Controller) SyncRemote(ctx context.Context) (SyncReport, error) {
	if c.remote == nil {
		return SyncReport{}, &SyncError{Err: ErrSyncDisabled}
	}
	c.mu.Lock()
	if c.latest == nil {
		c.mu.Unlock()
		return SyncReport{}, &SyncError{Err: ErrNoSnapshot}
	}
	snap := *c.latest
	c.syncTicket++
	ticket := c.syncTicket
	c.mu.Unlock()

	// The local copy is brought up to date first; a local failure is
	// already reported and does not block the push.
	_ = c.FlushLocal(ctx)

	start := time.Now()
	attempts, err := c.remote.Push(ctx, snap)
	elapsed := time.Since(start)
	metrics.RecordSync(float64(elapsed.Microseconds())/1000, err)

	report := SyncReport{
		GameID:   snap.GameID,
		Revision: snap.Revision,
		Attempts: attempts,
		SyncedAt: c.clock.Now(),
		Duration: elapsed,
	}

	c.mu.Lock()
	if ticket < c.syncDone {
		c.mu.Unlock()
		metrics.RecordSyncSuperseded()
		c.logger.Debug(ctx, "sync result superseded",
			logger.String("game", snap.GameID),
			logger.Uint64("revision", snap.Revision),
		)
		report.Superseded = true
		return report, nil
	}
	c.syncDone = ticket
	if err != nil {
		serr := &SyncError{GameID: snap.GameID, Revision: snap.Revision, Attempts: attempts, Err: err}
		c.syncErr = serr
		c.mu.Unlock()
		metrics.RecordErrorByComponent("sync", "remote")
		c.logger.Warn(ctx, "remote sync failed; local state kept for retry",
			logger.String("game", snap.GameID),
			logger.Uint64("revision", snap.Revision),
			logger.Int("attempts", attempts),
			logger.Error(err),
		)
		c.notify(serr)
		return report, serr
	}
	c.synced, c.syncedRev = true, snap.Revision
	c.syncedAt = report.SyncedAt
	c.syncErr = nil
	c.mu.Unlock()
	c.logger.Info(ctx, "session synced",
		logger.String("game", snap.GameID),
		logger.Uint64("revision", snap.Revision),
		logger.Int("attempts", attempts),
	)
	return report, nil
}

// periodicSync pushes only when there is something the backend has not seen.
func (c *Controller) periodicSync(ctx context.Context) {
	c.mu.Lock()
	due := c.latest != nil && (!c.synced || c.latest.Revision > c.syncedRev)
	c.mu.Unlock()
	if due {
		_, _ = c.SyncRemote(ctx)
	}
}

func (c *Controller) finalFlush(ctx context.Context) {
	if err := c.FlushLocal(ctx); err != nil {
		c.logger.Error(ctx, "final flush failed", logger.Error(err))
	}
}

func (c *Controller) notify(err error) {
	if c.warn != nil {
		c.warn(err)
	}
}

// Status reports persistence progress.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:          c.state,
		SavedRevision:  c.savedRev,
		SyncedRevision: c.syncedRev,
		LastSavedAt:    c.savedAt,
		LastSyncedAt:   c.syncedAt,
	}
	if c.latest != nil {
		st.LatestRevision = c.latest.Revision
	}
	if c.saveErr != nil {
		st.LastSaveError = c.saveErr.Error()
	}
	if c.syncErr != nil {
		st.LastSyncError = c.syncErr.Error()
	}
	return st
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
