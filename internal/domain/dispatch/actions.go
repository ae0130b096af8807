package dispatch

import (
	"strconv"

	"github.com/okian/rinktrack/internal/domain/model"
)

// Action is a stable name for one tracker operation. Physical keys are
// bound to actions; tests and API clients perform actions by name.
type Action string

const (
	ActionShiftStart  Action = "shift_start"
	ActionShiftEnd    Action = "shift_end"
	ActionShiftToggle Action = "shift_toggle"
	ActionFocusSlot   Action = "focus_slot"

	ActionLogShot      Action = "log_shot"
	ActionLogGoal      Action = "log_goal"
	ActionLogPass      Action = "log_pass"
	ActionLogFaceoff   Action = "log_faceoff"
	ActionLogPenalty   Action = "log_penalty"
	ActionLogHit       Action = "log_hit"
	ActionLogTurnover  Action = "log_turnover"
	ActionLogZoneEntry Action = "log_zone_entry"
	ActionLogZoneExit  Action = "log_zone_exit"
	ActionLogStoppage  Action = "log_stoppage"
	ActionLogSave      Action = "log_save"
	ActionLogBlock     Action = "log_block"
	ActionLogTakeaway  Action = "log_takeaway"
	ActionLogGiveaway  Action = "log_giveaway"

	ActionClockAdvance Action = "clock_advance"
	ActionClockRewind  Action = "clock_rewind"
	ActionClockToggle  Action = "clock_toggle"
	ActionPeriodNext   Action = "period_next"

	ActionUndo Action = "undo"
	ActionRedo Action = "redo"
)

// logActions maps each log_* action to the event type it records.
var logActions = map[Action]model.EventType{
	ActionLogShot:      model.EventShot,
	ActionLogGoal:      model.EventGoal,
	ActionLogPass:      model.EventPass,
	ActionLogFaceoff:   model.EventFaceoff,
	ActionLogPenalty:   model.EventPenalty,
	ActionLogHit:       model.EventHit,
	ActionLogTurnover:  model.EventTurnover,
	ActionLogZoneEntry: model.EventZoneEntry,
	ActionLogZoneExit:  model.EventZoneExit,
	ActionLogStoppage:  model.EventStoppage,
	ActionLogSave:      model.EventSave,
	ActionLogBlock:     model.EventBlock,
	ActionLogTakeaway:  model.EventTakeaway,
	ActionLogGiveaway:  model.EventGiveaway,
}

var otherActions = map[Action]struct{}{
	ActionShiftStart: {}, ActionShiftEnd: {}, ActionShiftToggle: {}, ActionFocusSlot: {},
	ActionClockAdvance: {}, ActionClockRewind: {}, ActionClockToggle: {}, ActionPeriodNext: {},
	ActionUndo: {}, ActionRedo: {},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	if _, ok := logActions[a]; ok {
		return true
	}
	_, ok := otherActions[a]
	return ok
}

// EventType returns the event type a log_* action records.
func (a Action) EventType() (model.EventType, bool) {
	t, ok := logActions[a]
	return t, ok
}

// ParseAction converts a name into an Action.
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if !a.Valid() {
		return "", model.NewKind("dispatch.parse_action", model.ErrValidation, "unknown action "+strconv.Quote(name))
	}
	return a, nil
}

// Actions lists every known action name.
func Actions() []Action {
	out := make([]Action, 0, len(logActions)+len(otherActions))
	for a := range otherActions {
		out = append(out, a)
	}
	for a := range logActions {
		out = append(out, a)
	}
	return out
}

// Command is an action with its arguments. Slot is 1-based; 0 means the
// focused slot. Seconds is used by the clock actions; 0 means the
// dispatcher's default step.
type Command struct {
	Action  Action `json:"action"`
	Slot    int    `json:"slot,omitempty"`
	Seconds int    `json:"seconds,omitempty"`
	// Partner is an optional second slot for two-player events such as an
	// assist or the player drawing a penalty.
	Partner int `json:"partner,omitempty"`
}
