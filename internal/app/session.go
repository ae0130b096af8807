package service

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/rinktrack/internal/adapters/autosave"
	"github.com/okian/rinktrack/internal/adapters/export"
	"github.com/okian/rinktrack/internal/domain/dispatch"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/internal/domain/tracker"
)

const maxWarnings = 10

// Session is one live game. Its mutex serializes every operation so that
// mutations apply strictly in arrival order.
type Session struct {
	mu         sync.Mutex
	tracker    *tracker.Tracker
	dispatcher *dispatch.Dispatcher
	autosave   *autosave.Controller

	warnMu   sync.Mutex
	warnings []string
}

// View is a session snapshot together with its persistence progress and
// the most recent non-fatal warnings.
type View struct {
	Snapshot    model.Snapshot  `json:"snapshot"`
	Persistence autosave.Status `json:"persistence"`
	Slots       []string        `json:"slots"`
	Focus       int             `json:"focus"`
	CanUndo     bool            `json:"can_undo"`
	CanRedo     bool            `json:"can_redo"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// view must be called with mu held or before the session is shared.
func (sess *Session) view() View {
	sess.warnMu.Lock()
	warnings := slices.Clone(sess.warnings)
	sess.warnMu.Unlock()
	return View{
		Snapshot:    sess.tracker.Snapshot(),
		Persistence: sess.autosave.Status(),
		Slots:       sess.dispatcher.Slots(),
		Focus:       sess.dispatcher.Focus(),
		CanUndo:     sess.tracker.Log.CanUndo(),
		CanRedo:     sess.tracker.Log.CanRedo(),
		Warnings:    warnings,
	}
}

func (sess *Session) warn(err error) {
	sess.warnMu.Lock()
	defer sess.warnMu.Unlock()
	sess.warnings = append(sess.warnings, err.Error())
	if len(sess.warnings) > maxWarnings {
		sess.warnings = sess.warnings[len(sess.warnings)-maxWarnings:]
	}
}

// with runs fn on the session under its lock.
func (s *Service) with(gameID string, fn func(*Session) error) error {
	sess, err := s.session(gameID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

// View returns the current state of a session.
func (s *Service) View(_ context.Context, gameID string) (View, error) {
	var v View
	err := s.with(gameID, func(sess *Session) error {
		v = sess.view()
		return nil
	})
	return v, err
}

// HandleKey routes a key press through the session's dispatcher.
func (s *Service) HandleKey(_ context.Context, gameID string, key dispatch.KeyEvent) (dispatch.Result, error) {
	var res dispatch.Result
	err := s.with(gameID, func(sess *Session) (err error) {
		res, err = sess.dispatcher.Handle(key)
		return err
	})
	return res, err
}

// Perform runs a named action. A non-empty requestID makes the call
// idempotent: a repeated id is acknowledged with duplicate set and the
// action is not applied again.
func (s *Service) Perform(ctx context.Context, gameID, requestID string, cmd dispatch.Command) (res dispatch.Result, duplicate bool, err error) {
	err = s.with(gameID, func(sess *Session) error {
		if requestID != "" && s.SeenAndRecord(ctx, gameID, requestID) {
			duplicate = true
			return nil
		}
		var perr error
		res, perr = sess.dispatcher.Perform(cmd)
		if perr != nil && requestID != "" {
			s.Unrecord(ctx, gameID, requestID)
		}
		return perr
	})
	return res, duplicate, err
}

// AssignSlot places a player in a lineup slot of the dispatcher.
func (s *Service) AssignSlot(_ context.Context, gameID string, slot int, playerID string) (View, error) {
	var v View
	err := s.with(gameID, func(sess *Session) error {
		if err := sess.dispatcher.AssignSlot(slot, playerID); err != nil {
			return err
		}
		v = sess.view()
		return nil
	})
	return v, err
}

// RecordEvent appends an event and returns it as stored. A zero time
// means the session's current time.
func (s *Service) RecordEvent(_ context.Context, gameID string, ev model.Event) (model.Event, error) {
	var out model.Event
	err := s.with(gameID, func(sess *Session) error {
		if ev.Time.Period == 0 {
			ev.Time = sess.tracker.Now()
		}
		id, err := sess.tracker.Record(ev)
		if err != nil {
			return err
		}
		out, _ = sess.tracker.Log.Get(id)
		return nil
	})
	return out, err
}

// AmendEvent applies patch to an event.
func (s *Service) AmendEvent(_ context.Context, gameID, eventID string, patch tracker.Patch) (model.Event, error) {
	var out model.Event
	err := s.with(gameID, func(sess *Session) (err error) {
		out, err = sess.tracker.Log.Amend(eventID, patch)
		return err
	})
	return out, err
}

// RetractEvent removes an event.
func (s *Service) RetractEvent(_ context.Context, gameID, eventID string) error {
	return s.with(gameID, func(sess *Session) error {
		return sess.tracker.Log.Retract(eventID)
	})
}

// Events lists events matching f in game-time order.
func (s *Service) Events(_ context.Context, gameID string, f tracker.Filter) ([]model.Event, error) {
	var out []model.Event
	err := s.with(gameID, func(sess *Session) error {
		out = slices.Collect(sess.tracker.Log.Query(f))
		return nil
	})
	return out, err
}

// ShiftChange starts or ends a shift. A nil period or seconds means the
// session's current value.
type ShiftChange struct {
	PlayerID string `json:"player_id"`
	Period   *int   `json:"period,omitempty"`
	Seconds  *int   `json:"seconds,omitempty"`
}

// StartShift puts a player on ice.
func (s *Service) StartShift(_ context.Context, gameID string, c ShiftChange) ([]model.Shift, error) {
	return s.shiftChange(gameID, c, (*tracker.Tracker).StartShift)
}

// EndShift takes a player off ice.
func (s *Service) EndShift(_ context.Context, gameID string, c ShiftChange) ([]model.Shift, error) {
	return s.shiftChange(gameID, c, (*tracker.Tracker).EndShift)
}

func (s *Service) shiftChange(gameID string, c ShiftChange, fn func(*tracker.Tracker, string, model.GameTime) error) ([]model.Shift, error) {
	var out []model.Shift
	err := s.with(gameID, func(sess *Session) error {
		if err := fn(sess.tracker, c.PlayerID, lookupShiftTime(sess.tracker, c.Period, c.Seconds)); err != nil {
			return err
		}
		out = sess.tracker.Shifts.For(c.PlayerID)
		return nil
	})
	return out, err
}

// Shifts lists the shifts of one player, or of every player when
// playerID is empty.
func (s *Service) Shifts(_ context.Context, gameID, playerID string) ([]model.Shift, error) {
	var out []model.Shift
	err := s.with(gameID, func(sess *Session) error {
		if playerID == "" {
			out = sess.tracker.Snapshot().Shifts
			return nil
		}
		if _, ok := sess.tracker.Player(playerID); !ok {
			return model.NewKindf("service.shifts", model.ErrNotFound, "player %q", playerID)
		}
		out = sess.tracker.Shifts.For(playerID)
		return nil
	})
	return out, err
}

// ClockOp names a clock operation.
type ClockOp string

const (
	ClockAdvance ClockOp = "advance"
	ClockRewind  ClockOp = "rewind"
	ClockSet     ClockOp = "set"
	ClockPeriod  ClockOp = "period"
	ClockStart   ClockOp = "start"
	ClockPause   ClockOp = "pause"
	ClockAnchor  ClockOp = "video_anchor"
)

// ClockChange is one clock operation. Value is seconds, or the period
// number for ClockPeriod. VideoSeconds is used by ClockAnchor for the
// current period.
type ClockChange struct {
	Op           ClockOp `json:"op"`
	Value        int     `json:"value"`
	VideoSeconds float64 `json:"video_seconds,omitempty"`
}

// Clock applies a clock operation and returns the new state.
func (s *Service) Clock(_ context.Context, gameID string, c ClockChange) (View, error) {
	var v View
	err := s.with(gameID, func(sess *Session) error {
		clock := sess.tracker.Clock
		var err error
		switch c.Op {
		case ClockAdvance:
			err = clock.Advance(c.Value)
		case ClockRewind:
			err = clock.Rewind(c.Value)
		case ClockSet:
			err = clock.SetClock(c.Value)
		case ClockPeriod:
			err = clock.SetPeriod(c.Value)
		case ClockStart:
			err = clock.Start()
		case ClockPause:
			err = clock.Pause()
		case ClockAnchor:
			err = sess.tracker.Session.SetVideoAnchor(clock.Now().Period, c.VideoSeconds)
		default:
			err = model.WrapKind("service.clock", model.ErrValidation, ErrUnknownClockOp)
		}
		if err != nil {
			return err
		}
		v = sess.view()
		return nil
	})
	return v, err
}

// Undo reverts the last event-log change.
func (s *Service) Undo(_ context.Context, gameID string) (View, error) {
	return s.mutateView(gameID, func(t *tracker.Tracker) error { return t.Undo() })
}

// Redo re-applies the last undone event-log change.
func (s *Service) Redo(_ context.Context, gameID string) (View, error) {
	return s.mutateView(gameID, func(t *tracker.Tracker) error { return t.Redo() })
}

// Finish ends the game, saves it locally and, when a remote is
// configured, syncs it. Save and sync failures are reported as warnings;
// the game stays finished.
func (s *Service) Finish(ctx context.Context, gameID string) (View, error) {
	var v View
	err := s.with(gameID, func(sess *Session) error {
		if err := sess.tracker.Finish(); err != nil {
			return err
		}
		// The controller records a failed save in the status and warnings.
		_ = sess.autosave.FlushLocal(ctx)
		if s.remote != nil {
			_, _ = sess.autosave.SyncRemote(ctx)
		}
		v = sess.view()
		return nil
	})
	return v, err
}

func (s *Service) mutateView(gameID string, fn func(*tracker.Tracker) error) (View, error) {
	var v View
	err := s.with(gameID, func(sess *Session) error {
		if err := fn(sess.tracker); err != nil {
			return err
		}
		v = sess.view()
		return nil
	})
	return v, err
}

// Save writes the session to local storage now.
func (s *Service) Save(ctx context.Context, gameID string) (autosave.Status, error) {
	sess, err := s.session(gameID)
	if err != nil {
		return autosave.Status{}, err
	}
	err = sess.autosave.FlushLocal(ctx)
	return sess.autosave.Status(), err
}

// Sync pushes the full session to the remote backend. It does not hold
// the session lock, so tracking continues while the push is in flight.
func (s *Service) Sync(ctx context.Context, gameID string) (autosave.SyncReport, error) {
	sess, err := s.session(gameID)
	if err != nil {
		return autosave.SyncReport{}, err
	}
	return sess.autosave.SyncRemote(ctx)
}

// Export flattens the session into a table.
func (s *Service) Export(_ context.Context, gameID string, kind export.Kind) (export.Table, error) {
	var snap model.Snapshot
	if err := s.with(gameID, func(sess *Session) error {
		snap = sess.tracker.Snapshot()
		return nil
	}); err != nil {
		return export.Table{}, err
	}
	return export.Build(snap, kind)
}
