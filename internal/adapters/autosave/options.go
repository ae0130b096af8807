package autosave

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/rinktrack/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithQuietPeriod sets how long the state must stay unchanged before a
// pending autosave is written.
func WithQuietPeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.quiet = d
		}
	}
}

// WithSyncInterval enables periodic remote sync. Zero disables it.
func WithSyncInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.syncInterval = d
		}
	}
}

// WithRemote sets the remote endpoint used by SyncRemote.
func WithRemote(r Remote) Option {
	return func(c *Controller) {
		c.remote = r
	}
}

// WithClock sets the clock driving the debounce and sync timers.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithWarningHandler sets a callback for non-fatal persistence failures
// that should be surfaced to the user.
func WithWarningHandler(fn func(error)) Option {
	return func(c *Controller) {
		c.warn = fn
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}
