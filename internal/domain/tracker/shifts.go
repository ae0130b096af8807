package tracker

import (
	"context"
	"sort"

	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
	"github.com/okian/rinktrack/pkg/metrics"
)

// Shifts derives per-player on/off-ice intervals from lineup changes.
//
// Invariant: per player, closed shifts never overlap and at most one shift
// is open. The set of players with an open shift is the current lineup.
type Shifts struct {
	s      *Session
	logger logger.Logger
}

// NewShifts binds a shift tracker to s and registers the period carry
// policy with the clock engine.
func NewShifts(s *Session, clock *Clock) *Shifts {
	t := &Shifts{s: s, logger: s.logger.Named("shifts")}
	if clock != nil && s.rules.Carry == model.CarrySplit {
		clock.OnPeriodChange(t.splitAtBoundary)
	}
	return t
}

// Start puts a player on ice at `at`. Starting a player who is already on
// ice is a logged no-op so double key presses are harmless.
func (t *Shifts) Start(playerID string, at model.GameTime) error {
	const op = "shifts.start"
	p, at, err := t.check(op, playerID, at)
	if err != nil {
		return err
	}
	if _, on := t.s.open[p.ID]; on {
		t.logger.Debug(context.Background(), "player already on ice", logger.String("player", p.ID))
		return nil
	}
	if hist := t.s.closed[p.ID]; len(hist) > 0 {
		if last := hist[len(hist)-1]; at.Before(*last.End) {
			return model.NewKindf(op, model.ErrValidation, "start %s %s overlaps previous shift ending %s",
				t.s.rules.Label(at.Period), at.Clock(), last.End.Clock())
		}
	}
	if t.s.rules.Carry == model.CarrySplit && at.Period < t.s.period {
		t.backfill(p, at)
	} else {
		t.open(p, at)
	}
	t.s.commit()
	metrics.RecordShiftStarted()
	return nil
}

// End takes a player off ice at `at`.
func (t *Shifts) End(playerID string, at model.GameTime) error {
	const op = "shifts.end"
	p, at, err := t.check(op, playerID, at)
	if err != nil {
		return err
	}
	sh, on := t.s.open[p.ID]
	if !on {
		return model.NewKindf(op, model.ErrInvalidTransition, "player %q has no open shift", p.ID)
	}
	if at.Before(sh.Start) {
		return model.NewKindf(op, model.ErrValidation, "end precedes shift start %s", sh.Start.Clock())
	}
	t.close(p.ID, at)
	t.s.commit()
	metrics.RecordShiftEnded()
	return nil
}

// check validates a lineup change request and normalizes its time.
func (t *Shifts) check(op, playerID string, at model.GameTime) (model.Player, model.GameTime, error) {
	if err := t.s.ensureLive(op); err != nil {
		return model.Player{}, at, err
	}
	p, ok := t.s.roster.Player(playerID)
	if !ok {
		return model.Player{}, at, model.NewKindf(op, model.ErrValidation, "player %q is not on the roster", playerID)
	}
	if at.Period < 1 || at.Period > t.s.period {
		return p, at, model.NewKindf(op, model.ErrOutOfRange, "period %d is not open", at.Period)
	}
	if limit := t.s.rules.Length(at.Period); at.Seconds < 0 || at.Seconds > limit {
		return p, at, model.NewKindf(op, model.ErrOutOfRange, "%d outside [0, %d]", at.Seconds, limit)
	}
	return p, t.s.rules.At(at.Period, at.Seconds), nil
}

func (t *Shifts) open(p model.Player, at model.GameTime) {
	t.s.open[p.ID] = &model.Shift{
		ID:       t.s.cfg.newID(),
		PlayerID: p.ID,
		Side:     p.Side,
		Period:   at.Period,
		Start:    at,
	}
}

// backfill records a shift that began in an earlier period as one closed
// segment per finished period and opens the current period's segment at 0.
func (t *Shifts) backfill(p model.Player, at model.GameTime) {
	for period := at.Period; period < t.s.period; period++ {
		t.open(p, at)
		t.close(p.ID, t.s.rules.At(period, t.s.rules.Length(period)))
		at = t.s.rules.At(period+1, 0)
	}
	t.open(p, at)
}

// close ends the open shift at `at`, never before its start.
func (t *Shifts) close(playerID string, at model.GameTime) {
	sh := t.s.open[playerID]
	end := at
	if end.Before(sh.Start) {
		end = sh.Start
	}
	sh.End = &end
	t.s.closed[playerID] = append(t.s.closed[playerID], *sh)
	delete(t.s.open, playerID)
}

// closeAll force-closes every open shift at `at` without committing.
func (t *Shifts) closeAll(at model.GameTime) []model.Player {
	var closed []model.Player
	for _, p := range t.s.roster.Players() {
		if _, on := t.s.open[p.ID]; on {
			t.close(p.ID, at)
			closed = append(closed, p)
		}
	}
	return closed
}

// splitAtBoundary closes open shifts at the old period's clock and reopens
// continuation shifts at the start of the new period.
func (t *Shifts) splitAtBoundary(from, to model.GameTime) {
	for _, p := range t.closeAll(from) {
		t.open(p, to)
	}
}

// Active returns the players on ice at time `at`, in roster order.
func (t *Shifts) Active(at model.GameTime) []model.Player {
	at = t.s.rules.At(at.Period, at.Seconds)
	var out []model.Player
	for _, p := range t.s.roster.Players() {
		if sh, on := t.s.open[p.ID]; on && sh.Covers(at) {
			out = append(out, p)
			continue
		}
		hist := t.s.closed[p.ID]
		// Last shift starting at or before `at` is the only candidate.
		i := sort.Search(len(hist), func(i int) bool { return hist[i].Start.Elapsed > at.Elapsed })
		if i > 0 && hist[i-1].Covers(at) {
			out = append(out, p)
		}
	}
	return out
}

// OnIce returns the current lineup.
func (t *Shifts) OnIce() []model.Player {
	var out []model.Player
	for _, p := range t.s.roster.Players() {
		if _, on := t.s.open[p.ID]; on {
			out = append(out, p)
		}
	}
	return out
}

// IsOnIce reports whether a player currently has an open shift.
func (t *Shifts) IsOnIce(playerID string) bool {
	_, on := t.s.open[playerID]
	return on
}

// For returns a player's shifts ordered by start, the open one last.
func (t *Shifts) For(playerID string) []model.Shift {
	hist := t.s.closed[playerID]
	out := make([]model.Shift, 0, len(hist)+1)
	for _, sh := range hist {
		out = append(out, copyShift(sh))
	}
	if sh, on := t.s.open[playerID]; on {
		out = append(out, copyShift(*sh))
	}
	return out
}
