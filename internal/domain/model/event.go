package model

import "strconv"

// EventType is the closed set of discrete occurrences the tracker records.
type EventType string

const (
	EventShot      EventType = "shot"
	EventGoal      EventType = "goal"
	EventPass      EventType = "pass"
	EventFaceoff   EventType = "faceoff"
	EventPenalty   EventType = "penalty"
	EventHit       EventType = "hit"
	EventTurnover  EventType = "turnover"
	EventZoneEntry EventType = "zone_entry"
	EventZoneExit  EventType = "zone_exit"
	EventStoppage  EventType = "stoppage"
	EventSave      EventType = "save"
	EventBlock     EventType = "block"
	EventTakeaway  EventType = "takeaway"
	EventGiveaway  EventType = "giveaway"
)

var eventTypes = map[EventType]struct{}{
	EventShot: {}, EventGoal: {}, EventPass: {}, EventFaceoff: {}, EventPenalty: {},
	EventHit: {}, EventTurnover: {}, EventZoneEntry: {}, EventZoneExit: {},
	EventStoppage: {}, EventSave: {}, EventBlock: {}, EventTakeaway: {}, EventGiveaway: {},
}

// Valid reports whether t belongs to the closed set.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// RequiresPlayer reports whether an event of this type must name an actor.
func (t EventType) RequiresPlayer() bool {
	return t != EventStoppage
}

// ParseEventType converts s into an EventType.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", NewKind("model.parse_event_type", ErrValidation, "unknown event type "+strconv.Quote(s))
	}
	return t, nil
}

// Rink coordinate bounds, center ice at the origin, in feet.
const (
	RinkHalfLength = 100.0
	RinkHalfWidth  = 42.5
)

// Point is a rink location.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OnRink reports whether p lies within the rink bounds.
func (p Point) OnRink() bool {
	return p.X >= -RinkHalfLength && p.X <= RinkHalfLength &&
		p.Y >= -RinkHalfWidth && p.Y <= RinkHalfWidth
}

// Flip mirrors p through center ice.
func (p Point) Flip() Point { return Point{X: -p.X, Y: -p.Y} }

// Event is a discrete timestamped occurrence.
type Event struct {
	ID          string    `json:"id"`
	Seq         uint64    `json:"seq"` // insertion order, tie-break for same-instant events
	Type        EventType `json:"type"`
	Time        GameTime  `json:"time"`
	Side        Side      `json:"side"`
	TeamID      string    `json:"team_id"`
	Players     []string  `json:"players"`                // actor first, then e.g. assist or victim
	Location    *Point    `json:"location,omitempty"`     // normalized: acting team attacks +x
	RawLocation *Point    `json:"raw_location,omitempty"` // as entered
	VideoTime   *float64  `json:"video_time,omitempty"`
	Highlight   bool      `json:"highlight"`
	Detail      string    `json:"detail,omitempty"`
	OnIce       []string  `json:"on_ice,omitempty"`
	ActorOnIce  bool      `json:"actor_on_ice"`
}

// Actor returns the primary player, or "" for player-less events.
func (e Event) Actor() string {
	if len(e.Players) == 0 {
		return ""
	}
	return e.Players[0]
}

// IsGoal reports whether the event changes the score.
func (e Event) IsGoal() bool { return e.Type == EventGoal }

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	c := e
	c.Players = append([]string(nil), e.Players...)
	c.OnIce = append([]string(nil), e.OnIce...)
	if e.Location != nil {
		p := *e.Location
		c.Location = &p
	}
	if e.RawLocation != nil {
		p := *e.RawLocation
		c.RawLocation = &p
	}
	if e.VideoTime != nil {
		v := *e.VideoTime
		c.VideoTime = &v
	}
	return c
}

// EventLess orders events by game time, then insertion sequence.
func EventLess(a, b Event) bool {
	if a.Time.Elapsed != b.Time.Elapsed {
		return a.Time.Elapsed < b.Time.Elapsed
	}
	return a.Seq < b.Seq
}
