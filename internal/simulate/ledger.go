package simulate

import (
	"strings"

	"github.com/okian/rinktrack/internal/domain/dispatch"
	"github.com/okian/rinktrack/internal/domain/model"
)

// entry is one event the simulator expects in the log.
type entry struct {
	typ  model.EventType
	side model.Side
}

// ledger mirrors the event log and its undo stacks from the replies the
// service gave, so the final session can be checked against it.
type ledger struct {
	home   string
	events []entry
	redo   []entry
}

func newLedger(homeTeamID string) *ledger {
	return &ledger{home: homeTeamID}
}

// apply records an action the service applied.
func (l *ledger) apply(cmd dispatch.Command, actor string) {
	switch cmd.Action {
	case dispatch.ActionUndo:
		if n := len(l.events); n > 0 {
			l.redo = append(l.redo, l.events[n-1])
			l.events = l.events[:n-1]
		}
		return
	case dispatch.ActionRedo:
		if n := len(l.redo); n > 0 {
			l.events = append(l.events, l.redo[n-1])
			l.redo = l.redo[:n-1]
		}
		return
	}
	typ, ok := cmd.Action.EventType()
	if !ok {
		return
	}
	e := entry{typ: typ}
	if actor != "" {
		e.side = model.Away
		if strings.HasPrefix(actor, l.home+"-") {
			e.side = model.Home
		}
	}
	l.events = append(l.events, e)
	l.redo = l.redo[:0]
}

// score is the score the recorded goals add up to.
func (l *ledger) score() model.Score {
	var s model.Score
	for _, e := range l.events {
		if e.typ == model.EventGoal {
			s = s.Add(e.side, 1)
		}
	}
	return s
}

func (l *ledger) count() int { return len(l.events) }
