package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/rinktrack/pkg/logger"
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "simulation_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`rinktrack Game Simulator
========================

Plays scripted hockey games against a running rinktrack service through the
action API and checks every finished game against the replies it received.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -token string
        Bearer token for the service API
  -games int
        Number of games to play (default 20)
  -actions int
        Actions sent per game (default 400)
  -duplicates float
        Share of actions resent with a repeated request id (default 0.05)
  -workers int
        Number of games played concurrently (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed uint
        Seed for the scripts; 0 picks one
  -output string
        Output file for the scripts (default: simulated_games_TIMESTAMP.json)
  -log string
        Log file (default: simulation_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Play with default settings
  go run ./cmd/simulate

  # A longer, reproducible run
  go run ./cmd/simulate -games 100 -actions 2000 -seed 42
`)
}
