package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/rinktrack/internal/simulate"
)

// Default configuration constants.
const (
	defaultGames         = 20
	defaultActions       = 400
	defaultDuplicateRate = 0.05
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		token      = flag.String("token", "", "Bearer token for the service API")
		games      = flag.Int("games", defaultGames, "Number of games to play")
		actions    = flag.Int("actions", defaultActions, "Actions sent per game")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Share of actions resent with a repeated request id")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of games played concurrently")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", 0, "Seed for the scripts; 0 picks one")
		outputFile = flag.String("output", "", "Output file for the scripts (default: simulated_games_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file (default: simulation_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:        *baseURL,
		Token:          *token,
		Games:          *games,
		ActionsPerGame: *actions,
		DuplicateRate:  *duplicates,
		Workers:        max(*workers, 1),
		Timeout:        *timeout,
		Seed:           *seed,
		OutputFile:     *outputFile,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
