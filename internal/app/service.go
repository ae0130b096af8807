// Package service hosts live tracking sessions and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/rinktrack/internal/adapters/autosave"
	"github.com/okian/rinktrack/internal/adapters/dataaccess"
	"github.com/okian/rinktrack/internal/adapters/repository"
	"github.com/okian/rinktrack/internal/domain/dedupe"
	"github.com/okian/rinktrack/internal/domain/dispatch"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/internal/domain/tracker"
	"github.com/okian/rinktrack/pkg/logger"
	"github.com/okian/rinktrack/pkg/metrics"
)

// Service owns the live sessions, one per game id.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store   repository.Store
	remote  autosave.Remote
	querier dataaccess.Querier
	deduper dedupe.Deduper
	clock   clockwork.Clock

	// Configuration
	quietPeriod  time.Duration
	syncInterval time.Duration
	undoDepth    int
	dedupeSize   int
	clockStep    int

	// State
	sessions map[string]*Session
	started  bool
	runCtx   context.Context
	cancel   context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the local snapshot store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRemote enables remote sync through r.
func WithRemote(r autosave.Remote) Option {
	return func(s *Service) {
		s.remote = r
	}
}

// WithQuerier sets the dashboard data source.
func WithQuerier(q dataaccess.Querier) Option {
	return func(s *Service) {
		s.querier = q
	}
}

// WithQuietPeriod sets the autosave debounce period.
func WithQuietPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.quietPeriod = d
		}
	}
}

// WithSyncInterval sets the periodic remote sync interval. Zero disables it.
func WithSyncInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.syncInterval = d
		}
	}
}

// WithUndoDepth bounds each session's undo stack.
func WithUndoDepth(depth int) Option {
	return func(s *Service) {
		if depth > 0 {
			s.undoDepth = depth
		}
	}
}

// WithDedupeSize sets the size of the request id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithClockStep sets the default seconds moved by the clock keys.
func WithClockStep(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.clockStep = seconds
		}
	}
}

// WithClock sets the clock driving autosave timers.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		quietPeriod:  time.Second,
		syncInterval: 30 * time.Second,
		undoDepth:    100,
		dedupeSize:   4096,
		clockStep:    5,
		clock:        clockwork.NewRealClock(),
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.querier == nil {
		s.querier = dataaccess.NewLocal(s.store)
	}
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "tracker service started",
		logger.Duration("quietPeriod", s.quietPeriod),
		logger.Duration("syncInterval", s.syncInterval),
		logger.Bool("remoteSync", s.remote != nil),
		logger.Int("undoDepth", s.undoDepth),
	)
	return nil
}

// Stop flushes and stops every session, then closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping tracker service...", logger.Int("sessions", len(s.sessions)))

	for id, sess := range s.sessions {
		if err := sess.autosave.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "session did not stop cleanly", logger.String("game", id), logger.Error(err))
		}
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store failed", logger.Error(err))
	}
	clear(s.sessions)
	metrics.UpdateActiveSessions(0)

	s.started = false
	s.logger.Info(ctx, "tracker service stopped")
}

// OpenSession returns the live session for cfg.GameID, resuming it from the
// latest local autosave when one exists, or creating it otherwise. resumed
// reports whether existing state was used.
func (s *Service) OpenSession(ctx context.Context, cfg tracker.Config) (view View, resumed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return View{}, false, ErrNotStarted
	}
	cfg.GameID = strings.TrimSpace(cfg.GameID)
	if cfg.GameID == "" {
		return View{}, false, model.NewKind("service.open_session", model.ErrValidation, "game id is required")
	}
	if sess, ok := s.sessions[cfg.GameID]; ok {
		return sess.view(), true, nil
	}

	opts := []tracker.Option{
		tracker.WithUndoDepth(s.undoDepth),
		tracker.WithLogger(s.logger.Named("tracker")),
	}
	var tr *tracker.Tracker
	snap, err := s.store.Latest(ctx, cfg.GameID)
	switch {
	case err == nil:
		tr, err = tracker.Restore(snap, opts...)
		if err != nil {
			return View{}, false, fmt.Errorf("restore %s: %w", cfg.GameID, err)
		}
		resumed = true
	case errors.Is(err, repository.ErrNotFound):
		tr, err = tracker.New(cfg, opts...)
		if err != nil {
			return View{}, false, err
		}
	default:
		return View{}, false, fmt.Errorf("%w: %w", autosave.ErrLocalStorage, err)
	}

	sess := s.newSession(tr, resumed)
	s.sessions[tr.Session.GameID()] = sess
	metrics.UpdateActiveSessions(len(s.sessions))
	s.logger.Info(ctx, "session opened",
		logger.String("game", tr.Session.GameID()),
		logger.Bool("resumed", resumed),
		logger.Uint64("revision", tr.Session.Revision()),
	)
	return sess.view(), resumed, nil
}

func (s *Service) newSession(tr *tracker.Tracker, resumed bool) *Session {
	sess := &Session{tracker: tr}
	opts := []autosave.Option{
		autosave.WithClock(s.clock),
		autosave.WithQuietPeriod(s.quietPeriod),
		autosave.WithWarningHandler(sess.warn),
		autosave.WithLogger(s.logger.Named("autosave")),
	}
	if s.remote != nil {
		opts = append(opts, autosave.WithRemote(s.remote), autosave.WithSyncInterval(s.syncInterval))
	}
	sess.autosave = autosave.NewController(s.store, opts...)
	sess.dispatcher = dispatch.New(tr,
		dispatch.WithClockStep(s.clockStep),
		dispatch.WithLogger(s.logger.Named("dispatch")),
	)

	snap := tr.Snapshot()
	if resumed {
		sess.autosave.Seed(snap)
	} else {
		// The initial state is saved like any other change.
		sess.autosave.OnStateChange(snap)
	}
	tr.Session.Subscribe(sess.autosave)
	go sess.autosave.Run(s.runCtx)
	return sess
}

// session looks up a live session.
func (s *Service) session(gameID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	sess, ok := s.sessions[gameID]
	if !ok {
		return nil, notFound(gameID)
	}
	return sess, nil
}

// CloseSession flushes a session and stops tracking it in memory. Its
// autosaves stay in the local store.
func (s *Service) CloseSession(ctx context.Context, gameID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[gameID]
	if ok {
		delete(s.sessions, gameID)
		metrics.UpdateActiveSessions(len(s.sessions))
	}
	s.mu.Unlock()
	if !ok {
		return notFound(gameID)
	}
	return sess.autosave.Shutdown(ctx)
}

// Sessions lists the live game ids.
func (s *Service) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SeenAndRecord reports whether an action request id was already applied
// to gameID, recording it if not.
func (s *Service) SeenAndRecord(ctx context.Context, gameID, requestID string) bool {
	seen := s.deduper.SeenAndRecord(ctx, dedupe.Key(gameID, requestID))
	if seen {
		metrics.RecordActionDuplicate()
	}
	return seen
}

// Unrecord forgets a request id so that a failed action can be retried.
func (s *Service) Unrecord(ctx context.Context, gameID, requestID string) {
	s.deduper.Unrecord(ctx, dedupe.Key(gameID, requestID))
}

// Query answers a dashboard read.
func (s *Service) Query(ctx context.Context, entity string, f dataaccess.Filter) ([]dataaccess.Row, error) {
	if s.querier == nil {
		return nil, ErrQueryDisabled
	}
	return s.querier.Query(ctx, entity, f)
}

// Entities lists the dashboard entities.
func (s *Service) Entities() []string {
	if s.querier == nil {
		return nil
	}
	return s.querier.Entities()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"sessions":     len(s.sessions),
		"remoteSync":   s.remote != nil,
		"quietPeriod":  s.quietPeriod.String(),
		"syncInterval": s.syncInterval.String(),
		"undoDepth":    s.undoDepth,
	}
	if s.started {
		stats["dedupeEntries"] = s.deduper.Size()
		pending := 0
		for _, sess := range s.sessions {
			if sess.autosave.Status().State != autosave.StateIdle {
				pending++
			}
		}
		stats["pendingSaves"] = pending

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		metrics.UpdateSystemMemoryUsage(mem.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		metrics.UpdateActiveSessions(len(s.sessions))
	}
	return stats
}

var _ dispatch.Target = (*tracker.Tracker)(nil)

// lookupShiftTime resolves an optional explicit time against the session's
// current time.
func lookupShiftTime(tr *tracker.Tracker, period, seconds *int) model.GameTime {
	now := tr.Now()
	p, sec := now.Period, now.Seconds
	if period != nil {
		p = *period
	}
	if seconds != nil {
		sec = *seconds
	}
	return tr.Session.Rules().At(p, sec)
}
