package dispatch

import "github.com/okian/rinktrack/pkg/logger"

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithKeymap replaces the default keymap. Chords are normalized; entries
// with unknown actions are skipped.
func WithKeymap(km map[string]Command) Option {
	return func(d *Dispatcher) {
		if km == nil {
			return
		}
		d.bindings = make(map[string]Command, len(km))
		for k, c := range km {
			if c.Action.Valid() {
				d.bindings[ParseChord(k).Chord()] = c
			}
		}
	}
}

// WithSlotCount sets the number of lineup slots.
func WithSlotCount(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.slots = make([]string, n)
		}
	}
}

// WithClockStep sets the default seconds moved by the clock actions.
func WithClockStep(seconds int) Option {
	return func(d *Dispatcher) {
		if seconds > 0 {
			d.clockStep = seconds
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
