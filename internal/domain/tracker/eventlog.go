package tracker

import (
	"context"
	"iter"
	"slices"
	"sort"

	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
	"github.com/okian/rinktrack/pkg/metrics"
)

// Log is the ordered event log. Goal events carry the only cross-aggregate
// side effect: inserting one adds a goal to the scoring side and removing
// one takes it away, in the same step as the log mutation.
type Log struct {
	s       *Session
	shifts  *Shifts
	history *history
	logger  logger.Logger
}

// NewLog binds an event log to s. shifts supplies the on-ice context
// stamped on new events.
func NewLog(s *Session, shifts *Shifts) *Log {
	return &Log{
		s:       s,
		shifts:  shifts,
		history: newHistory(s.cfg.undoDepth),
		logger:  s.logger.Named("events"),
	}
}

// Patch lists the fields Amend may change. Nil fields are left alone.
type Patch struct {
	Type          *model.EventType `json:"type,omitempty"`
	Period        *int             `json:"period,omitempty"`
	Seconds       *int             `json:"seconds,omitempty"`
	Side          *model.Side      `json:"side,omitempty"`
	Players       []string         `json:"players,omitempty"`
	Location      *model.Point     `json:"location,omitempty"`
	ClearLocation bool             `json:"clear_location,omitempty"`
	Highlight     *bool            `json:"highlight,omitempty"`
	Detail        *string          `json:"detail,omitempty"`
}

// Filter selects events in Query. Zero fields match everything.
type Filter struct {
	Types         []model.EventType
	Period        int
	Side          model.Side
	PlayerID      string
	HighlightOnly bool
}

func (f Filter) match(ev model.Event) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, ev.Type) {
		return false
	}
	if f.Period != 0 && ev.Time.Period != f.Period {
		return false
	}
	if f.Side != "" && ev.Side != f.Side {
		return false
	}
	if f.PlayerID != "" && !slices.Contains(ev.Players, f.PlayerID) {
		return false
	}
	return !f.HighlightOnly || ev.Highlight
}

// Append validates and records an event and returns its id.
//
// The caller supplies Type, Time (Period and Seconds), Players, and
// optionally Side or TeamID, Location (as entered), Highlight and Detail.
// The log assigns ID and Seq, derives Elapsed, the normalized location,
// the video timestamp and the on-ice context. Goals are always highlights.
func (l *Log) Append(in model.Event) (string, error) {
	const op = "events.append"
	ev, err := l.prepare(op, in)
	if err != nil {
		metrics.RecordCommandRejected(kindLabel(err))
		return "", err
	}
	ev.ID = l.s.cfg.newID()
	ev.Seq = l.s.nextSeq
	ev.Highlight = ev.Highlight || ev.IsGoal()
	l.s.nextSeq++

	c := change{after: &ev}
	l.apply(c)
	l.history.record(c)
	l.s.commit()

	if !ev.ActorOnIce {
		l.logger.Warn(context.Background(), "event actor not on ice",
			logger.String("event", ev.ID),
			logger.String("player", ev.Actor()),
			logger.String("type", string(ev.Type)),
		)
	}
	metrics.RecordEventRecorded(string(ev.Type))
	return ev.ID, nil
}

// Amend applies patch to an existing event and returns the result.
func (l *Log) Amend(id string, patch Patch) (model.Event, error) {
	const op = "events.amend"
	if err := l.s.ensureLive(op); err != nil {
		return model.Event{}, err
	}
	old, ok := l.find(id)
	if !ok {
		return model.Event{}, model.NewKindf(op, model.ErrNotFound, "event %q", id)
	}

	in := old.Clone()
	in.Location = old.RawLocation
	if patch.Type != nil {
		in.Type = *patch.Type
	}
	if patch.Period != nil {
		in.Time.Period = *patch.Period
	}
	if patch.Seconds != nil {
		in.Time.Seconds = *patch.Seconds
	}
	if patch.Players != nil {
		in.Players = slices.Clone(patch.Players)
		in.Side, in.TeamID = "", ""
	}
	if patch.Side != nil {
		in.Side, in.TeamID = *patch.Side, ""
	}
	if patch.ClearLocation {
		in.Location = nil
	}
	if patch.Location != nil {
		p := *patch.Location
		in.Location = &p
	}
	if patch.Highlight != nil {
		in.Highlight = *patch.Highlight
	}
	if patch.Detail != nil {
		in.Detail = *patch.Detail
	}

	ev, err := l.prepare(op, in)
	if err != nil {
		metrics.RecordCommandRejected(kindLabel(err))
		return model.Event{}, err
	}
	ev.ID, ev.Seq = old.ID, old.Seq

	before := old.Clone()
	c := change{before: &before, after: &ev}
	l.apply(c)
	l.history.record(c)
	l.s.commit()
	metrics.RecordEventAmended()
	return ev.Clone(), nil
}

// Retract removes an event, reversing its score effect.
func (l *Log) Retract(id string) error {
	const op = "events.retract"
	if err := l.s.ensureLive(op); err != nil {
		return err
	}
	old, ok := l.find(id)
	if !ok {
		return model.NewKindf(op, model.ErrNotFound, "event %q", id)
	}
	c := change{before: &old}
	l.apply(c)
	l.history.record(c)
	l.s.commit()
	metrics.RecordEventRetracted()
	return nil
}

// Undo reverses the most recent append, amend or retract.
func (l *Log) Undo() error {
	const op = "events.undo"
	if err := l.s.ensureLive(op); err != nil {
		return err
	}
	c, ok := l.history.peekUndo()
	if !ok {
		return model.NewKind(op, model.ErrInvalidTransition, "nothing to undo")
	}
	l.apply(c.inverse())
	l.history.undone()
	l.s.commit()
	metrics.RecordUndo()
	return nil
}

// Redo re-applies the most recently undone change.
func (l *Log) Redo() error {
	const op = "events.redo"
	if err := l.s.ensureLive(op); err != nil {
		return err
	}
	c, ok := l.history.peekRedo()
	if !ok {
		return model.NewKind(op, model.ErrInvalidTransition, "nothing to redo")
	}
	l.apply(c)
	l.history.redone()
	l.s.commit()
	metrics.RecordRedo()
	return nil
}

// CanUndo reports whether Undo has anything to reverse.
func (l *Log) CanUndo() bool { return l.history.canUndo() }

// CanRedo reports whether Redo has anything to re-apply.
func (l *Log) CanRedo() bool { return l.history.canRedo() }

// Get returns a copy of one event.
func (l *Log) Get(id string) (model.Event, bool) {
	ev, ok := l.find(id)
	if !ok {
		return model.Event{}, false
	}
	return ev.Clone(), true
}

// Len returns the number of events in the log.
func (l *Log) Len() int { return len(l.s.events) }

// Query returns the matching events ordered by game time then insertion.
// The sequence reads the log as of the Query call and can be ranged over
// any number of times.
func (l *Log) Query(f Filter) iter.Seq[model.Event] {
	events := slices.Clone(l.s.events)
	return func(yield func(model.Event) bool) {
		for _, ev := range events {
			if !f.match(ev) {
				continue
			}
			if !yield(ev.Clone()) {
				return
			}
		}
	}
}

// apply performs a change: remove `before`, insert `after`, and move the
// score for any goal involved.
func (l *Log) apply(c change) {
	if c.before != nil {
		l.remove(c.before.ID)
		if c.before.IsGoal() {
			l.s.score = l.s.score.Add(c.before.Side, -1)
		}
	}
	if c.after != nil {
		ev := c.after.Clone()
		i := sort.Search(len(l.s.events), func(i int) bool { return model.EventLess(ev, l.s.events[i]) })
		l.s.events = slices.Insert(l.s.events, i, ev)
		if ev.IsGoal() {
			l.s.score = l.s.score.Add(ev.Side, 1)
		}
	}
}

func (l *Log) remove(id string) {
	l.s.events = slices.DeleteFunc(l.s.events, func(ev model.Event) bool { return ev.ID == id })
}

func (l *Log) find(id string) (model.Event, bool) {
	for _, ev := range l.s.events {
		if ev.ID == id {
			return ev.Clone(), true
		}
	}
	return model.Event{}, false
}

// prepare validates an event input and fills every derived field except
// ID and Seq. It never mutates the session.
func (l *Log) prepare(op string, in model.Event) (model.Event, error) {
	if err := l.s.ensureLive(op); err != nil {
		return model.Event{}, err
	}
	ev := in.Clone()
	if !ev.Type.Valid() {
		return model.Event{}, model.NewKindf(op, model.ErrValidation, "unknown event type %q", ev.Type)
	}

	p := ev.Time.Period
	if p < 1 || p > l.s.period {
		return model.Event{}, model.NewKindf(op, model.ErrValidation, "period %d is not current or closed", p)
	}
	if limit := l.s.rules.Length(p); ev.Time.Seconds < 0 || ev.Time.Seconds > limit {
		return model.Event{}, model.NewKindf(op, model.ErrValidation, "time %d outside [0, %d] for %s", ev.Time.Seconds, limit, l.s.rules.Label(p))
	}
	ev.Time = l.s.rules.At(p, ev.Time.Seconds)

	if err := l.resolvePlayers(op, &ev); err != nil {
		return model.Event{}, err
	}

	ev.RawLocation = nil
	if ev.Location != nil {
		raw := *ev.Location
		if !raw.OnRink() {
			return model.Event{}, model.NewKindf(op, model.ErrValidation, "location (%.1f, %.1f) is off the rink", raw.X, raw.Y)
		}
		norm := raw
		if ev.Side != "" && !l.s.attacksRight(ev.Side, p) {
			norm = raw.Flip()
		}
		ev.RawLocation, ev.Location = &raw, &norm
	}

	ev.VideoTime = l.s.videoTime(ev.Time)
	ev.OnIce = nil
	ev.ActorOnIce = ev.Actor() == ""
	if l.shifts != nil {
		for _, pl := range l.shifts.Active(ev.Time) {
			ev.OnIce = append(ev.OnIce, pl.ID)
			if pl.ID == ev.Actor() {
				ev.ActorOnIce = true
			}
		}
	}
	return ev, nil
}

// resolvePlayers checks the involved players and settles the acting side.
func (l *Log) resolvePlayers(op string, ev *model.Event) error {
	if len(ev.Players) > 2 {
		return model.NewKind(op, model.ErrValidation, "at most two players per event")
	}
	if ev.Type.RequiresPlayer() && len(ev.Players) == 0 {
		return model.NewKindf(op, model.ErrValidation, "%s needs a player", ev.Type)
	}
	if len(ev.Players) == 2 && ev.Players[0] == ev.Players[1] {
		return model.NewKind(op, model.ErrValidation, "players must differ")
	}
	for _, id := range ev.Players {
		if _, ok := l.s.roster.Player(id); !ok {
			return model.NewKindf(op, model.ErrValidation, "player %q is not on the roster", id)
		}
	}

	if ev.TeamID != "" {
		side, ok := l.s.SideOf(ev.TeamID)
		if !ok {
			return model.NewKindf(op, model.ErrValidation, "team %q is not in this game", ev.TeamID)
		}
		if ev.Side != "" && ev.Side != side {
			return model.NewKind(op, model.ErrValidation, "team and side disagree")
		}
		ev.Side = side
	}
	if actor := ev.Actor(); actor != "" {
		p, _ := l.s.roster.Player(actor)
		if ev.Side == "" {
			ev.Side = p.Side
		}
		if p.Side != ev.Side {
			return model.NewKindf(op, model.ErrValidation, "player %q does not play for the %s team", actor, ev.Side)
		}
	}
	if ev.Side == "" && !ev.Type.RequiresPlayer() {
		// Neutral events such as stoppages belong to neither team.
		ev.TeamID = ""
		return nil
	}
	if !ev.Side.Valid() {
		return model.NewKind(op, model.ErrValidation, "event team is required")
	}
	ev.TeamID = l.s.Team(ev.Side).ID
	return nil
}

// kindLabel names an error kind for metrics labels.
func kindLabel(err error) string {
	switch model.KindOf(err) {
	case model.ErrValidation:
		return "validation"
	case model.ErrInvalidTransition:
		return "invalid_transition"
	case model.ErrOutOfRange:
		return "out_of_range"
	case model.ErrNotFound:
		return "not_found"
	}
	return "other"
}
