package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/rinktrack/internal/domain/dispatch"
	"github.com/okian/rinktrack/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run plays the configured number of games against the service and
// checks every finished game against what the replies said happened.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")

	log.Info(ctx, "starting rinktrack game simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("games", config.Games),
		logger.Int("actionsPerGame", config.ActionsPerGame),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	client := newHTTPClient(config)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate scripts
	scripts, err := generateScripts(ctx, config)
	if err != nil {
		return fmt.Errorf("script generation failed: %w", err)
	}

	// Step 3: Play games concurrently, each game's actions in order
	ledgers := playGames(ctx, client, config, scripts, stats)

	// Step 4: Verify results
	verifyErr := verifyGames(ctx, client, scripts, ledgers, stats)

	// Step 5: Save scripts to file
	if err := saveScripts(ctx, config, scripts); err != nil {
		log.Warn(ctx, "failed to save scripts to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return fmt.Errorf("result verification failed: %w", verifyErr)
	}
	log.Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, body, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	return expectStatus(status, body, http.StatusOK)
}

// playGames drives every script through a worker pool. The ledger of a
// game is nil when the game could not be opened.
func playGames(ctx context.Context, client *HTTPClient, config *Config, scripts []Script, stats *Stats) []*ledger {
	ledgers := make([]*ledger, len(scripts))
	var (
		opened, sent, applied, duplicate, rejected, failed int64
		lastReport                                         atomic.Int64
	)

	jobs := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				l, counts, err := playGame(ctx, client, scripts[i])
				if err != nil {
					logger.Get().Warn(ctx, "game aborted", logger.String("game", scripts[i].Game.GameID), logger.Error(err))
					continue
				}
				ledgers[i] = l
				atomic.AddInt64(&opened, 1)
				atomic.AddInt64(&sent, int64(counts.sent))
				atomic.AddInt64(&applied, int64(counts.applied))
				atomic.AddInt64(&duplicate, int64(counts.duplicate))
				atomic.AddInt64(&rejected, int64(counts.rejected))
				atomic.AddInt64(&failed, int64(counts.failed))

				now := time.Now().UnixNano()
				if last := lastReport.Load(); now-last >= int64(ReportInterval) && lastReport.CompareAndSwap(last, now) {
					if config.Verbose {
						logger.Get().Info(ctx, "progress",
							logger.Int("games", int(atomic.LoadInt64(&opened))),
							logger.Int("actions", int(atomic.LoadInt64(&sent))))
					} else {
						fmt.Printf("\rGames played: %d/%d", atomic.LoadInt64(&opened), len(scripts))
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range scripts {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()
	if !config.Verbose {
		fmt.Println()
	}

	stats.GamesOpened = int(opened)
	stats.ActionsSent = int(sent)
	stats.ActionsApplied = int(applied)
	stats.ActionsDuplicate = int(duplicate)
	stats.ActionsRejected = int(rejected)
	stats.ActionsFailed = int(failed)
	return ledgers
}

type counts struct {
	sent, applied, duplicate, rejected, failed int
}

// playGame opens the game, fills the lineup slots, sends every step and
// finishes the game.
func playGame(ctx context.Context, client *HTTPClient, s Script) (*ledger, counts, error) {
	var c counts
	base := "/sessions/" + url.PathEscape(s.Game.GameID)

	status, body, err := client.Post(ctx, "/sessions", s.Game)
	if err != nil {
		return nil, c, err
	}
	if err := expectStatus(status, body, http.StatusCreated); err != nil {
		return nil, c, fmt.Errorf("open: %w", err)
	}
	for i, playerID := range s.Slots {
		status, body, err := client.Put(ctx, base+"/slots/"+strconv.Itoa(i+1), map[string]string{"player_id": playerID})
		if err != nil {
			return nil, c, err
		}
		if err := expectStatus(status, body, http.StatusOK); err != nil {
			return nil, c, fmt.Errorf("slot %d: %w", i+1, err)
		}
	}

	l := newLedger(s.Game.Home.ID)
	for _, step := range s.Steps {
		c.sent++
		req := struct {
			dispatch.Command
			RequestID string `json:"request_id"`
		}{step.Command, step.RequestID}

		status, body, err := client.Post(ctx, base+"/actions", req)
		switch {
		case err != nil || status >= http.StatusInternalServerError:
			c.failed++
			continue
		case status != http.StatusOK:
			// The service refused the action; its state is unchanged.
			c.rejected++
			continue
		}
		var resp ActionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			c.failed++
			continue
		}
		if resp.Duplicate {
			c.duplicate++
			continue
		}
		c.applied++
		l.apply(step.Command, resp.Result.PlayerID)
	}

	status, body, err = client.Post(ctx, base+"/finish", nil)
	if err != nil {
		return nil, c, err
	}
	if err := expectStatus(status, body, http.StatusOK); err != nil {
		return nil, c, fmt.Errorf("finish: %w", err)
	}
	return l, c, nil
}

// saveScripts writes the generated scripts to a JSON file.
func saveScripts(ctx context.Context, config *Config, scripts []Script) error {
	if len(scripts) == 0 {
		return fmt.Errorf("no scripts to save")
	}

	filename := config.OutputFile
	if filename == "" {
		filename = "simulated_games_" + time.Now().Format("20060102_150405") + ".json"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(scripts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scripts: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "scripts saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var applyRate, actionsPerSecond float64
	if stats.ActionsSent > 0 {
		applyRate = float64(stats.ActionsApplied) / float64(stats.ActionsSent) * percentageBase
	}
	if stats.Duration > 0 {
		actionsPerSecond = float64(stats.ActionsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("gamesOpened", stats.GamesOpened),
		logger.Int("gamesVerified", stats.GamesVerified),
		logger.Int("mismatches", stats.Mismatches),
		logger.Int("actionsSent", stats.ActionsSent),
		logger.Int("actionsApplied", stats.ActionsApplied),
		logger.Int("actionsDuplicate", stats.ActionsDuplicate),
		logger.Int("actionsRejected", stats.ActionsRejected),
		logger.Int("actionsFailed", stats.ActionsFailed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("applyRate", applyRate),
		logger.Float64("actionsPerSecond", actionsPerSecond))
}
