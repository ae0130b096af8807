package simulate

import (
	"time"

	"github.com/okian/rinktrack/internal/domain/dispatch"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/internal/domain/tracker"
)

// Config holds configuration for a simulation run
type Config struct {
	BaseURL        string        // Base URL of the service
	Token          string        // Bearer token, if the service requires one
	Games          int           // Number of games to simulate
	ActionsPerGame int           // Number of actions sent per game
	DuplicateRate  float64       // Share of actions resent with the same request id
	Workers        int           // Number of games driven concurrently
	Timeout        time.Duration // HTTP request timeout
	Seed           uint64        // Seed for the action scripts; 0 picks one
	OutputFile     string        // Output file for the generated scripts
	LogFile        string        // Log file for test output
	Verbose        bool          // Enable verbose logging
}

// Step is one scripted action.
type Step struct {
	RequestID string           `json:"request_id"`
	Command   dispatch.Command `json:"command"`
	// Resend marks a step that repeats an earlier request id.
	Resend bool `json:"resend,omitempty"`
}

// Script is everything sent for one game.
type Script struct {
	Game  tracker.Config `json:"game"`
	Slots []string       `json:"slots"`
	Steps []Step         `json:"steps"`
}

// ActionResponse is the reply to an action post.
type ActionResponse struct {
	Result struct {
		Handled  bool   `json:"handled"`
		EventID  string `json:"event_id"`
		PlayerID string `json:"player_id"`
	} `json:"result"`
	Duplicate bool `json:"duplicate"`
}

// SessionView is the part of a session reply the simulator checks.
type SessionView struct {
	Snapshot model.Snapshot `json:"snapshot"`
}

// Stats holds simulation statistics
type Stats struct {
	GamesOpened      int
	ActionsSent      int
	ActionsApplied   int
	ActionsDuplicate int
	ActionsRejected  int
	ActionsFailed    int
	GamesVerified    int
	Mismatches       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
