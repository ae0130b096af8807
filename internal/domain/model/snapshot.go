package model

import "time"

// Status is the lifecycle state of a tracking session.
type Status string

const (
	StatusLive  Status = "live"
	StatusFinal Status = "final"
)

// Snapshot is the complete serialized session, the unit of autosave and sync.
type Snapshot struct {
	GameID                string          `json:"game_id"`
	Home                  Team            `json:"home"`
	Away                  Team            `json:"away"`
	Rules                 Rules           `json:"rules"`
	Period                int             `json:"period"`
	Clock                 int             `json:"clock"`
	Running               bool            `json:"running"`
	Score                 Score           `json:"score"`
	HomeAttacksRightFirst bool            `json:"home_attacks_right_first"`
	Roster                []Player        `json:"roster"`
	OnIce                 []string        `json:"on_ice"`
	Shifts                []Shift         `json:"shifts"`
	Events                []Event         `json:"events"`
	VideoAnchors          map[int]float64 `json:"video_anchors,omitempty"`
	Status                Status          `json:"status"`
	Revision              uint64          `json:"revision"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Now returns the snapshot's current game time.
func (s Snapshot) Now() GameTime {
	return s.Rules.At(s.Period, s.Clock)
}

// OpenShifts counts shifts still in progress.
func (s Snapshot) OpenShifts() int {
	n := 0
	for _, sh := range s.Shifts {
		if sh.Open() {
			n++
		}
	}
	return n
}
