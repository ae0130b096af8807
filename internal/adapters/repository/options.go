package repository

import "time"

// Option applies a configuration option to a snapshot store.
type Option func(*config)

// WithHistoryLimit sets how many revisions are kept per game. Older
// revisions are pruned on save. Values <= 0 keep every revision.
func WithHistoryLimit(n int) Option {
	return func(c *config) {
		c.historyLimit = n
	}
}

// WithNow sets the clock used for SavedAt stamps.
func WithNow(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
