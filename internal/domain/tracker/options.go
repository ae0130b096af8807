package tracker

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/rinktrack/pkg/logger"
)

// Default tracker configuration constants.
const (
	defaultUndoDepth = 200
)

// settings collects construction-time knobs shared by the session and its
// components.
type settings struct {
	undoDepth int
	newID     func() string
	now       func() time.Time
	logger    logger.Logger
}

func defaultSettings() settings {
	return settings{
		undoDepth: defaultUndoDepth,
		newID:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
}

// Option applies a configuration option to a tracker.
type Option func(*settings)

// WithUndoDepth bounds the undo stack; the oldest entries are dropped beyond it.
func WithUndoDepth(depth int) Option {
	return func(s *settings) {
		if depth > 0 {
			s.undoDepth = depth
		}
	}
}

// WithIDGenerator replaces the uuid generator used for events and shifts.
func WithIDGenerator(gen func() string) Option {
	return func(s *settings) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithNow sets the wall clock used for UpdatedAt stamps.
func WithNow(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the tracker.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
