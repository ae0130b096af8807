// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// AuthToken, when set, is required as a bearer token on API calls.
	AuthToken string `koanf:"auth_token"`

	// DataPath is the SQLite file holding local autosaves. ":memory:"
	// keeps them in process memory.
	DataPath string `koanf:"data_path"`

	// HistoryLimit is how many revisions per game the local store keeps.
	HistoryLimit int `koanf:"history_limit"`

	// QuietPeriod is how long a session must stay unchanged before it is
	// autosaved.
	QuietPeriod time.Duration `koanf:"quiet_period"`

	// SyncURL is the remote backend base URL. Empty disables remote sync.
	SyncURL string `koanf:"sync_url"`

	// SyncToken is the bearer token sent to the remote backend.
	SyncToken string `koanf:"sync_token"`

	// SyncInterval schedules periodic remote sync. Zero disables it.
	SyncInterval time.Duration `koanf:"sync_interval"`

	// SyncAttempts bounds retries of one remote push.
	SyncAttempts int `koanf:"sync_attempts"`

	// PostgresDSN points dashboard queries at the hosted database. Empty
	// serves them from local autosaves.
	PostgresDSN string `koanf:"postgres_dsn"`

	// UndoDepth bounds each session's undo stack.
	UndoDepth int `koanf:"undo_depth"`

	// DedupeSize bounds the remembered action request ids.
	DedupeSize int `koanf:"dedupe_size"`

	// ClockStep is how many seconds the clock keys move the clock.
	ClockStep int `koanf:"clock_step"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MetricsInterval is how often process and session gauges are refreshed.
	MetricsInterval time.Duration `koanf:"metrics_interval"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		DataPath:        "rinktrack.db",
		HistoryLimit:    20,
		QuietPeriod:     time.Second,
		SyncInterval:    30 * time.Second,
		SyncAttempts:    4,
		UndoDepth:       100,
		DedupeSize:      4096,
		ClockStep:       5,
		ShutdownTimeout: 10 * time.Second,
		MetricsInterval: 10 * time.Second,
	}
}

// Validate checks that the values are usable.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel):
		return invalid("unknown log_level %q", c.LogLevel)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json")
	case c.DataPath == "":
		return invalid("data_path must not be empty")
	case c.HistoryLimit < 0:
		return invalid("history_limit must not be negative")
	case c.QuietPeriod <= 0:
		return invalid("quiet_period must be positive")
	case c.SyncInterval < 0:
		return invalid("sync_interval must not be negative")
	case c.SyncAttempts < 1:
		return invalid("sync_attempts must be at least 1")
	case c.UndoDepth < 1:
		return invalid("undo_depth must be at least 1")
	case c.DedupeSize < 0:
		return invalid("dedupe_size must not be negative")
	case c.ClockStep < 1:
		return invalid("clock_step must be at least 1")
	case c.ShutdownTimeout <= 0:
		return invalid("shutdown_timeout must be positive")
	case c.MetricsInterval <= 0:
		return invalid("metrics_interval must be positive")
	}
	if c.SyncURL != "" {
		u, err := url.Parse(c.SyncURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid("sync_url must be an http(s) url")
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
