package dispatch

import (
	"slices"
	"strconv"
	"strings"
)

// KeyEvent is one key press.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Shift bool   `json:"shift,omitempty"`
}

// Chord renders the key press in the canonical form used for bindings,
// e.g. "ctrl+shift+z".
func (k KeyEvent) Chord() string {
	var b strings.Builder
	if k.Ctrl {
		b.WriteString("ctrl+")
	}
	if k.Alt {
		b.WriteString("alt+")
	}
	if k.Shift {
		b.WriteString("shift+")
	}
	b.WriteString(normalizeKey(k.Key))
	return b.String()
}

// ParseChord turns "Ctrl+Z" style text into a KeyEvent.
func ParseChord(s string) KeyEvent {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	var k KeyEvent
	for i, p := range parts {
		if i == len(parts)-1 {
			k.Key = p
			break
		}
		switch p {
		case "ctrl", "control", "cmd", "meta":
			k.Ctrl = true
		case "alt", "option":
			k.Alt = true
		case "shift":
			k.Shift = true
		}
	}
	return k
}

func normalizeKey(key string) string {
	key = strings.ToLower(key)
	switch key {
	case " ", "spacebar":
		return "space"
	case "arrowright":
		return "right"
	case "arrowleft":
		return "left"
	case "arrowup":
		return "up"
	case "arrowdown":
		return "down"
	case "esc":
		return "escape"
	}
	return key
}

// DefaultKeymap is the stock single-handed layout: digits toggle lineup
// slots, shift+digit focuses a slot, letters log events for the focused
// player, arrows move the clock.
func DefaultKeymap() map[string]Command {
	km := map[string]Command{
		"s":            {Action: ActionLogShot},
		"g":            {Action: ActionLogGoal},
		"a":            {Action: ActionLogPass},
		"f":            {Action: ActionLogFaceoff},
		"p":            {Action: ActionLogPenalty},
		"h":            {Action: ActionLogHit},
		"t":            {Action: ActionLogTurnover},
		"e":            {Action: ActionLogZoneEntry},
		"x":            {Action: ActionLogZoneExit},
		"w":            {Action: ActionLogStoppage},
		"v":            {Action: ActionLogSave},
		"b":            {Action: ActionLogBlock},
		"k":            {Action: ActionLogTakeaway},
		"l":            {Action: ActionLogGiveaway},
		"right":        {Action: ActionClockAdvance},
		"left":         {Action: ActionClockRewind},
		"space":        {Action: ActionClockToggle},
		"n":            {Action: ActionPeriodNext},
		"ctrl+z":       {Action: ActionUndo},
		"ctrl+y":       {Action: ActionRedo},
		"ctrl+shift+z": {Action: ActionRedo},
	}
	for i := 1; i <= 9; i++ {
		d := strconv.Itoa(i)
		km[d] = Command{Action: ActionShiftToggle, Slot: i}
		km["shift+"+d] = Command{Action: ActionFocusSlot, Slot: i}
	}
	return km
}

// keysFor lists the chords bound to a, sorted.
func keysFor(bindings map[string]Command, a Action) []string {
	var out []string
	for k, c := range bindings {
		if c.Action == a {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
