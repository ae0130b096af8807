package model

// Side identifies which of the two teams something belongs to.
type Side string

const (
	Home Side = "home"
	Away Side = "away"
)

// Valid reports whether s is home or away.
func (s Side) Valid() bool { return s == Home || s == Away }

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Home {
		return Away
	}
	return Home
}

// Team identifies one of the two clubs in a game.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player is a roster entry, immutable for the lifetime of a session.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
	Side   Side   `json:"side"`
	Jersey int    `json:"jersey"`
}

// Score is the running score of a game.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Add returns the score with n goals added for side.
func (s Score) Add(side Side, n int) Score {
	if side == Home {
		s.Home += n
	} else {
		s.Away += n
	}
	return s
}
