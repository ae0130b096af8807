// Package dispatch routes key presses and named actions to tracker
// operations. It holds only local input state (bindings, lineup slots and
// the focused slot); every game rule lives in the tracker.
package dispatch

import (
	"context"
	"maps"
	"strings"

	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
	"github.com/okian/rinktrack/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	defaultClockStep = 5
	defaultSlots     = 9
)

// Target is the set of tracker operations the dispatcher can invoke.
// *tracker.Tracker implements it.
type Target interface {
	Now() model.GameTime
	Player(id string) (model.Player, bool)
	IsOnIce(playerID string) bool
	StartShift(playerID string, at model.GameTime) error
	EndShift(playerID string, at model.GameTime) error
	Record(ev model.Event) (string, error)
	Advance(seconds int) error
	Rewind(seconds int) error
	ToggleClock() error
	NextPeriod() error
	Undo() error
	Redo() error
}

// Result describes what a key press or action did.
type Result struct {
	Handled bool    `json:"handled"`
	Command Command `json:"command"`
	// EventID is set when the command appended an event.
	EventID string `json:"event_id,omitempty"`
	// PlayerID is the player a slot command resolved to.
	PlayerID string `json:"player_id,omitempty"`
}

// Dispatcher maps keys to commands and commands to tracker calls.
type Dispatcher struct {
	target    Target
	bindings  map[string]Command
	slots     []string // slot n at index n-1; "" when empty
	focus     int
	clockStep int
	logger    logger.Logger
}

// New creates a dispatcher bound to target with the default keymap.
func New(target Target, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		target:    target,
		bindings:  DefaultKeymap(),
		slots:     make([]string, defaultSlots),
		focus:     1,
		clockStep: defaultClockStep,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("dispatch")
	}
	return d
}

// Bind maps a key chord to a command, replacing any previous binding.
func (d *Dispatcher) Bind(key string, cmd Command) error {
	const op = "dispatch.bind"
	if !cmd.Action.Valid() {
		return model.NewKindf(op, model.ErrValidation, "unknown action %q", cmd.Action)
	}
	chord := ParseChord(key).Chord()
	if strings.TrimSpace(key) == "" || strings.HasSuffix(chord, "+") {
		return model.NewKind(op, model.ErrValidation, "key is required")
	}
	d.bindings[chord] = cmd
	return nil
}

// Unbind removes a key binding.
func (d *Dispatcher) Unbind(key string) {
	delete(d.bindings, ParseChord(key).Chord())
}

// Bindings returns a copy of the current keymap.
func (d *Dispatcher) Bindings() map[string]Command {
	return maps.Clone(d.bindings)
}

// KeysFor lists the chords bound to an action.
func (d *Dispatcher) KeysFor(a Action) []string {
	return keysFor(d.bindings, a)
}

// Handle routes one key press. Unknown keys are no-ops.
func (d *Dispatcher) Handle(ev KeyEvent) (Result, error) {
	cmd, ok := d.bindings[ev.Chord()]
	if !ok {
		return Result{}, nil
	}
	return d.Perform(cmd)
}

// Perform runs a command by action name. One command causes at most one
// tracker mutation.
func (d *Dispatcher) Perform(cmd Command) (Result, error) {
	const op = "dispatch.perform"
	res := Result{Handled: true, Command: cmd}
	var err error

	switch a := cmd.Action; a {
	case ActionFocusSlot:
		err = d.setFocus(cmd.Slot)
	case ActionShiftStart, ActionShiftEnd, ActionShiftToggle:
		res.PlayerID, err = d.lineupChange(op, cmd)
	case ActionClockAdvance:
		err = d.target.Advance(d.step(cmd.Seconds))
	case ActionClockRewind:
		err = d.target.Rewind(d.step(cmd.Seconds))
	case ActionClockToggle:
		err = d.target.ToggleClock()
	case ActionPeriodNext:
		err = d.target.NextPeriod()
	case ActionUndo:
		err = d.target.Undo()
	case ActionRedo:
		err = d.target.Redo()
	default:
		typ, ok := a.EventType()
		if !ok {
			return Result{}, model.NewKindf(op, model.ErrValidation, "unknown action %q", a)
		}
		res.PlayerID, res.EventID, err = d.logEvent(op, typ, cmd)
	}
	if err != nil {
		d.logger.Warn(context.Background(), "action rejected",
			logger.String("action", string(cmd.Action)),
			logger.Int("slot", cmd.Slot),
			logger.Error(err),
		)
		return Result{}, err
	}
	metrics.RecordAction(string(cmd.Action))
	return res, nil
}

func (d *Dispatcher) lineupChange(op string, cmd Command) (string, error) {
	id, err := d.slotPlayer(op, cmd.Slot)
	if err != nil {
		return "", err
	}
	now := d.target.Now()
	switch cmd.Action {
	case ActionShiftStart:
		return id, d.target.StartShift(id, now)
	case ActionShiftEnd:
		return id, d.target.EndShift(id, now)
	}
	if d.target.IsOnIce(id) {
		return id, d.target.EndShift(id, now)
	}
	return id, d.target.StartShift(id, now)
}

// logEvent records an event of typ at the current game time for the slot's
// player, or for no player when the type allows it and no slot is filled.
func (d *Dispatcher) logEvent(op string, typ model.EventType, cmd Command) (string, string, error) {
	ev := model.Event{Type: typ, Time: d.target.Now()}
	actor, err := d.slotPlayer(op, cmd.Slot)
	switch {
	case err == nil:
		ev.Players = append(ev.Players, actor)
	case typ.RequiresPlayer():
		return "", "", err
	}
	if cmd.Partner != 0 {
		partner, err := d.slotPlayer(op, cmd.Partner)
		if err != nil {
			return "", "", err
		}
		ev.Players = append(ev.Players, partner)
	}
	id, err := d.target.Record(ev)
	return actor, id, err
}

func (d *Dispatcher) step(seconds int) int {
	if seconds > 0 {
		return seconds
	}
	return d.clockStep
}

// slotPlayer resolves a 1-based slot, 0 meaning the focused slot.
func (d *Dispatcher) slotPlayer(op string, slot int) (string, error) {
	if slot == 0 {
		slot = d.focus
	}
	if slot < 1 || slot > len(d.slots) {
		return "", model.NewKindf(op, model.ErrValidation, "slot %d does not exist", slot)
	}
	id := d.slots[slot-1]
	if id == "" {
		return "", model.NewKindf(op, model.ErrValidation, "slot %d is empty", slot)
	}
	return id, nil
}

// AssignSlot puts a roster player into a 1-based lineup slot. An empty
// playerID clears the slot.
func (d *Dispatcher) AssignSlot(slot int, playerID string) error {
	const op = "dispatch.assign_slot"
	if slot < 1 || slot > len(d.slots) {
		return model.NewKindf(op, model.ErrValidation, "slot %d does not exist", slot)
	}
	if playerID != "" {
		if _, ok := d.target.Player(playerID); !ok {
			return model.NewKindf(op, model.ErrValidation, "player %q is not on the roster", playerID)
		}
	}
	d.slots[slot-1] = playerID
	return nil
}

// Slots returns the slot assignments, slot 1 first.
func (d *Dispatcher) Slots() []string {
	return append([]string(nil), d.slots...)
}

// Focus returns the focused slot.
func (d *Dispatcher) Focus() int { return d.focus }

func (d *Dispatcher) setFocus(slot int) error {
	if slot < 1 || slot > len(d.slots) {
		return model.NewKindf("dispatch.focus", model.ErrValidation, "slot %d does not exist", slot)
	}
	d.focus = slot
	return nil
}
