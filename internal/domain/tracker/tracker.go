package tracker

import (
	"context"

	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
)

// Tracker wires the clock engine, shift tracker and event log to one
// session and exposes the operations the command dispatcher routes to.
type Tracker struct {
	Session *Session
	Clock   *Clock
	Shifts  *Shifts
	Log     *Log
}

// New creates a tracker for a fresh game.
func New(cfg Config, opts ...Option) (*Tracker, error) {
	s, err := NewSession(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return wire(s), nil
}

// Restore creates a tracker from a saved snapshot. Undo history is not
// part of a snapshot and starts empty.
func Restore(snap model.Snapshot, opts ...Option) (*Tracker, error) {
	s, err := RestoreSession(snap, opts...)
	if err != nil {
		return nil, err
	}
	return wire(s), nil
}

func wire(s *Session) *Tracker {
	clock := NewClock(s)
	shifts := NewShifts(s, clock)
	return &Tracker{
		Session: s,
		Clock:   clock,
		Shifts:  shifts,
		Log:     NewLog(s, shifts),
	}
}

// Now returns the current game time.
func (t *Tracker) Now() model.GameTime { return t.Clock.Now() }

// Snapshot returns the full session state.
func (t *Tracker) Snapshot() model.Snapshot { return t.Session.Snapshot() }

// Player looks up a roster entry.
func (t *Tracker) Player(id string) (model.Player, bool) {
	return t.Session.roster.Player(id)
}

// IsOnIce reports whether the player has an open shift.
func (t *Tracker) IsOnIce(playerID string) bool { return t.Shifts.IsOnIce(playerID) }

// StartShift puts a player on ice at `at`.
func (t *Tracker) StartShift(playerID string, at model.GameTime) error {
	return t.Shifts.Start(playerID, at)
}

// EndShift takes a player off ice at `at`.
func (t *Tracker) EndShift(playerID string, at model.GameTime) error {
	return t.Shifts.End(playerID, at)
}

// Record appends an event.
func (t *Tracker) Record(ev model.Event) (string, error) { return t.Log.Append(ev) }

// Advance moves the clock forward.
func (t *Tracker) Advance(seconds int) error { return t.Clock.Advance(seconds) }

// Rewind moves the clock back.
func (t *Tracker) Rewind(seconds int) error { return t.Clock.Rewind(seconds) }

// NextPeriod moves to the following period.
func (t *Tracker) NextPeriod() error { return t.Clock.NextPeriod() }

// ToggleClock starts or pauses the clock.
func (t *Tracker) ToggleClock() error { return t.Clock.Toggle() }

// Undo reverses the last event-log change.
func (t *Tracker) Undo() error { return t.Log.Undo() }

// Redo re-applies the last undone event-log change.
func (t *Tracker) Redo() error { return t.Log.Redo() }

// Finish ends the game: every open shift is force-closed at the current
// time, the clock stops and the session becomes final.
func (t *Tracker) Finish() error {
	const op = "tracker.finish"
	s := t.Session
	if err := s.ensureLive(op); err != nil {
		return err
	}
	closed := t.Shifts.closeAll(s.now())
	s.running = false
	s.status = model.StatusFinal
	s.commit()
	s.logger.Info(context.Background(), "session finalized",
		logger.String("game", s.gameID),
		logger.Int("closed_shifts", len(closed)),
		logger.Int("events", len(s.events)),
	)
	return nil
}
