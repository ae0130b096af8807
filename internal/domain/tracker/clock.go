package tracker

import (
	"github.com/okian/rinktrack/internal/domain/model"
)

// PeriodHook runs inside a period change, after the clock moved from `from`
// to `to` and before the change is committed. Hooks must not fail.
type PeriodHook func(from, to model.GameTime)

// Clock is the clock/period engine. Game time advances only through explicit
// calls and never reads the wall clock.
type Clock struct {
	s     *Session
	hooks []PeriodHook
}

// NewClock binds a clock engine to s.
func NewClock(s *Session) *Clock {
	return &Clock{s: s}
}

// OnPeriodChange registers h to run on every period change.
func (c *Clock) OnPeriodChange(h PeriodHook) {
	if h != nil {
		c.hooks = append(c.hooks, h)
	}
}

// Now returns the authoritative current game time.
func (c *Clock) Now() model.GameTime { return c.s.now() }

// Running reports whether the clock is marked running.
func (c *Clock) Running() bool { return c.s.running }

// Advance moves the clock forward by delta seconds within the period.
func (c *Clock) Advance(delta int) error {
	const op = "clock.advance"
	if err := c.s.ensureLive(op); err != nil {
		return err
	}
	if delta < 0 {
		return model.NewKind(op, model.ErrValidation, "delta must not be negative; use rewind")
	}
	if delta == 0 {
		return nil
	}
	next := c.s.clock + delta
	if limit := c.s.rules.Length(c.s.period); next > limit {
		return model.NewKindf(op, model.ErrOutOfRange, "%d exceeds period length %d", next, limit)
	}
	c.s.clock = next
	c.s.commit()
	return nil
}

// Rewind moves the clock back by delta seconds. The clock must be paused.
func (c *Clock) Rewind(delta int) error {
	const op = "clock.rewind"
	if delta < 0 {
		return model.NewKind(op, model.ErrValidation, "delta must not be negative")
	}
	return c.set(op, c.s.clock-delta)
}

// SetClock sets the elapsed seconds within the current period.
func (c *Clock) SetClock(seconds int) error {
	return c.set("clock.set", seconds)
}

func (c *Clock) set(op string, seconds int) error {
	if err := c.s.ensureLive(op); err != nil {
		return err
	}
	if limit := c.s.rules.Length(c.s.period); seconds < 0 || seconds > limit {
		return model.NewKindf(op, model.ErrOutOfRange, "%d outside [0, %d]", seconds, limit)
	}
	if seconds == c.s.clock {
		return nil
	}
	if seconds < c.s.clock {
		if c.s.running {
			return model.NewKind(op, model.ErrInvalidTransition, "pause the clock before moving it back")
		}
		target := c.s.rules.At(c.s.period, seconds)
		for id, sh := range c.s.open {
			if target.Before(sh.Start) {
				return model.NewKindf(op, model.ErrInvalidTransition, "player %q started a shift after %s", id, target.Clock())
			}
		}
	}
	c.s.clock = seconds
	c.s.commit()
	return nil
}

// SetPeriod moves to period n with the clock at 0:00. Open shifts are
// carried according to the rules' carry policy through the period hooks.
// Moving back to an earlier period requires that no shift is open.
func (c *Clock) SetPeriod(n int) error {
	const op = "clock.set_period"
	if err := c.s.ensureLive(op); err != nil {
		return err
	}
	if !c.s.rules.ValidPeriod(n) {
		return model.NewKindf(op, model.ErrOutOfRange, "period %d", n)
	}
	if n == c.s.period {
		return nil
	}
	if n < c.s.period && len(c.s.open) > 0 {
		return model.NewKind(op, model.ErrInvalidTransition, "cannot return to an earlier period with players on ice")
	}
	from := c.s.now()
	c.s.period, c.s.clock, c.s.running = n, 0, false
	to := c.s.now()
	for _, h := range c.hooks {
		h(from, to)
	}
	c.s.commit()
	return nil
}

// NextPeriod advances to the following period.
func (c *Clock) NextPeriod() error {
	return c.SetPeriod(c.s.period + 1)
}

// Start marks the clock running.
func (c *Clock) Start() error { return c.setRunning("clock.start", true) }

// Pause marks the clock stopped.
func (c *Clock) Pause() error { return c.setRunning("clock.pause", false) }

// Toggle flips the running flag.
func (c *Clock) Toggle() error { return c.setRunning("clock.toggle", !c.s.running) }

func (c *Clock) setRunning(op string, running bool) error {
	if err := c.s.ensureLive(op); err != nil {
		return err
	}
	if c.s.running == running {
		return nil
	}
	c.s.running = running
	c.s.commit()
	return nil
}
