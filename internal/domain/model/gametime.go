// Package model contains the tracker's domain types passed between layers.
package model

import (
	"fmt"
	"strconv"
)

// Default rule values for a regulation hockey game.
const (
	DefaultPeriodLength      = 1200
	DefaultRegulationPeriods = 3
	DefaultOvertimeLength    = 300
)

// CarryPolicy decides what happens to open shifts when the period changes.
type CarryPolicy string

const (
	// CarrySplit closes open shifts at the old period's clock and reopens a
	// continuation shift at 0 in the new period.
	CarrySplit CarryPolicy = "split"
	// CarrySpan keeps open shifts running across the period boundary.
	CarrySpan CarryPolicy = "span"
)

// Valid reports whether p is a known carry policy.
func (p CarryPolicy) Valid() bool {
	return p == CarrySplit || p == CarrySpan
}

// Rules configures period lengths and shift carry behavior for a game.
type Rules struct {
	PeriodLength      int         `json:"period_length"`
	RegulationPeriods int         `json:"regulation_periods"`
	OvertimeLength    int         `json:"overtime_length"`
	MaxPeriods        int         `json:"max_periods"` // 0 = unlimited overtime
	Carry             CarryPolicy `json:"carry_policy"`
}

// DefaultRules returns regulation rules with split shift carry.
func DefaultRules() Rules {
	return Rules{
		PeriodLength:      DefaultPeriodLength,
		RegulationPeriods: DefaultRegulationPeriods,
		OvertimeLength:    DefaultOvertimeLength,
		MaxPeriods:        DefaultRegulationPeriods + 1,
		Carry:             CarrySplit,
	}
}

// Normalize fills zero fields with defaults.
func (r Rules) Normalize() Rules {
	d := DefaultRules()
	if r.PeriodLength <= 0 {
		r.PeriodLength = d.PeriodLength
	}
	if r.RegulationPeriods <= 0 {
		r.RegulationPeriods = d.RegulationPeriods
	}
	if r.OvertimeLength <= 0 {
		r.OvertimeLength = d.OvertimeLength
	}
	if r.MaxPeriods < 0 {
		r.MaxPeriods = 0
	}
	if r.Carry == "" {
		r.Carry = d.Carry
	}
	return r
}

// Validate checks the rules are internally consistent.
func (r Rules) Validate() error {
	const op = "model.rules.validate"
	switch {
	case r.PeriodLength <= 0:
		return NewKind(op, ErrValidation, "period length must be positive")
	case r.RegulationPeriods <= 0:
		return NewKind(op, ErrValidation, "regulation periods must be positive")
	case r.OvertimeLength <= 0:
		return NewKind(op, ErrValidation, "overtime length must be positive")
	case r.MaxPeriods != 0 && r.MaxPeriods < r.RegulationPeriods:
		return NewKind(op, ErrValidation, "max periods below regulation periods")
	case !r.Carry.Valid():
		return NewKind(op, ErrValidation, "unknown carry policy "+strconv.Quote(string(r.Carry)))
	}
	return nil
}

// Length returns the configured length in seconds of period p.
func (r Rules) Length(p int) int {
	if p > r.RegulationPeriods {
		return r.OvertimeLength
	}
	return r.PeriodLength
}

// IsOvertime reports whether p is an overtime period.
func (r Rules) IsOvertime(p int) bool {
	return p > r.RegulationPeriods
}

// ValidPeriod reports whether p may be played under these rules.
func (r Rules) ValidPeriod(p int) bool {
	if p < 1 {
		return false
	}
	return r.MaxPeriods == 0 || p <= r.MaxPeriods
}

// Elapsed maps (period, seconds) onto the monotonic game-time axis.
// Each completed period occupies its length plus one boundary tick, so the
// closing instant of a period sorts strictly before the opening instant of
// the next one.
func (r Rules) Elapsed(period, seconds int) int {
	total := 0
	for p := 1; p < period; p++ {
		total += r.Length(p) + 1
	}
	return total + seconds
}

// At builds a GameTime for (period, seconds) with Elapsed filled in.
func (r Rules) At(period, seconds int) GameTime {
	return GameTime{Period: period, Seconds: seconds, Elapsed: r.Elapsed(period, seconds)}
}

// Label renders a period designator: P1..Pn for regulation, OT, OT2...
func (r Rules) Label(period int) string {
	if !r.IsOvertime(period) {
		return "P" + strconv.Itoa(period)
	}
	n := period - r.RegulationPeriods
	if n == 1 {
		return "OT"
	}
	return "OT" + strconv.Itoa(n)
}

// GameTime is a point on the game clock.
type GameTime struct {
	Period  int `json:"period"`
	Seconds int `json:"seconds"` // elapsed within the period
	Elapsed int `json:"elapsed"` // monotonic sort key across periods
}

// Before reports whether t sorts strictly before o.
func (t GameTime) Before(o GameTime) bool {
	return t.Elapsed < o.Elapsed
}

// Clock renders the elapsed seconds as m:ss.
func (t GameTime) Clock() string {
	return fmt.Sprintf("%d:%02d", t.Seconds/60, t.Seconds%60)
}
