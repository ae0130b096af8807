package tracker

import "github.com/okian/rinktrack/internal/domain/model"

// change is one reversible event-log mutation: the event state before and
// after. Append has no before, retract has no after, amend has both.
type change struct {
	before *model.Event
	after  *model.Event
}

func (c change) inverse() change {
	return change{before: c.after, after: c.before}
}

// history is a bounded undo/redo stack of changes.
type history struct {
	depth int
	undo  []change
	redo  []change
}

func newHistory(depth int) *history {
	return &history{depth: depth}
}

// record pushes a freshly applied change and invalidates the redo stack.
// Beyond depth the oldest entry is dropped.
func (h *history) record(c change) {
	h.undo = append(h.undo, c)
	if len(h.undo) > h.depth {
		h.undo = append(h.undo[:0:0], h.undo[len(h.undo)-h.depth:]...)
	}
	h.redo = h.redo[:0]
}

func (h *history) peekUndo() (change, bool) {
	if len(h.undo) == 0 {
		return change{}, false
	}
	return h.undo[len(h.undo)-1], true
}

func (h *history) peekRedo() (change, bool) {
	if len(h.redo) == 0 {
		return change{}, false
	}
	return h.redo[len(h.redo)-1], true
}

// undone moves the top undo entry onto the redo stack.
func (h *history) undone() {
	c := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, c)
}

// redone moves the top redo entry back onto the undo stack.
func (h *history) redone() {
	c := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, c)
}

func (h *history) canUndo() bool { return len(h.undo) > 0 }
func (h *history) canRedo() bool { return len(h.redo) > 0 }
