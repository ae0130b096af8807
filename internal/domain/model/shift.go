package model

// Shift is one continuous on-ice interval for one player.
type Shift struct {
	ID       string    `json:"id"`
	PlayerID string    `json:"player_id"`
	Side     Side      `json:"side"`
	Period   int       `json:"period"`
	Start    GameTime  `json:"start"`
	End      *GameTime `json:"end,omitempty"` // nil while the shift is in progress
}

// Open reports whether the shift is still in progress.
func (s Shift) Open() bool { return s.End == nil }

// Covers reports whether the player was on ice at t. Closed shifts are
// half-open intervals [start, end).
func (s Shift) Covers(t GameTime) bool {
	if t.Elapsed < s.Start.Elapsed {
		return false
	}
	return s.End == nil || t.Elapsed < s.End.Elapsed
}

// Length returns the shift length in game-time ticks, measured up to now
// for an open shift.
func (s Shift) Length(now GameTime) int {
	end := now
	if s.End != nil {
		end = *s.End
	}
	if end.Elapsed < s.Start.Elapsed {
		return 0
	}
	return end.Elapsed - s.Start.Elapsed
}
