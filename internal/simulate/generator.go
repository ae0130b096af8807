package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/rinktrack/internal/domain/dispatch"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/internal/domain/tracker"
	"github.com/okian/rinktrack/pkg/logger"
)

// logActions are the event actions a script draws from.
var logActions = []dispatch.Action{
	dispatch.ActionLogShot, dispatch.ActionLogShot, dispatch.ActionLogShot,
	dispatch.ActionLogPass, dispatch.ActionLogPass, dispatch.ActionLogPass,
	dispatch.ActionLogFaceoff, dispatch.ActionLogHit, dispatch.ActionLogTurnover,
	dispatch.ActionLogZoneEntry, dispatch.ActionLogZoneExit, dispatch.ActionLogSave,
	dispatch.ActionLogBlock, dispatch.ActionLogTakeaway, dispatch.ActionLogGiveaway,
	dispatch.ActionLogPenalty, dispatch.ActionLogStoppage, dispatch.ActionLogGoal,
}

// generateScripts builds one script per game. Scripts are reproducible
// from the seed.
func generateScripts(ctx context.Context, config *Config) ([]Script, error) {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger.Get().Info(ctx, "generating game scripts",
		logger.Int("games", config.Games),
		logger.Int("actionsPerGame", config.ActionsPerGame),
		logger.Uint64("seed", seed))

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	scripts := make([]Script, config.Games)
	for i := range scripts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during script generation: %w", err)
		}
		scripts[i] = generateScript(rng, config)
	}
	return scripts, nil
}

func generateScript(rng *rand.Rand, config *Config) Script {
	gameID := "sim-" + uuid.NewString()
	game := tracker.Config{
		GameID:                gameID,
		Home:                  model.Team{ID: "HOM", Name: "Simulated Home"},
		Away:                  model.Team{ID: "AWY", Name: "Simulated Away"},
		Rules:                 model.DefaultRules(),
		HomeAttacksRightFirst: rng.IntN(2) == 0,
	}
	for _, team := range []model.Team{game.Home, game.Away} {
		for n := 1; n <= rosterPerSide; n++ {
			game.Roster = append(game.Roster, model.Player{
				ID:     team.ID + "-" + strconv.Itoa(n),
				Name:   team.Name + " #" + strconv.Itoa(n),
				TeamID: team.ID,
				Jersey: n*7 + rng.IntN(7),
			})
		}
	}

	// Slots 1-3 hold home skaters, 4-6 away skaters.
	var slots []string
	for _, team := range []string{game.Home.ID, game.Away.ID} {
		for n := 1; n <= slotsPerSide; n++ {
			slots = append(slots, team+"-"+strconv.Itoa(n))
		}
	}

	steps := make([]Step, 0, config.ActionsPerGame)
	for len(steps) < config.ActionsPerGame {
		if len(steps) > 0 && rng.Float64() < config.DuplicateRate {
			prev := steps[rng.IntN(len(steps))]
			steps = append(steps, Step{RequestID: prev.RequestID, Command: prev.Command, Resend: true})
			continue
		}
		steps = append(steps, Step{RequestID: uuid.NewString(), Command: nextCommand(rng, len(slots))})
	}
	return Script{Game: game, Slots: slots, Steps: steps}
}

func nextCommand(rng *rand.Rand, slots int) dispatch.Command {
	slot := 1 + rng.IntN(slots)
	roll := rng.IntN(percentageBase)
	switch {
	case roll < shareShift:
		return dispatch.Command{Action: dispatch.ActionShiftToggle, Slot: slot}
	case roll < shareShift+shareClock:
		return dispatch.Command{Action: dispatch.ActionClockAdvance, Seconds: minClockStep + rng.IntN(maxClockStep-minClockStep)}
	case roll < shareShift+shareClock+shareUndo:
		return dispatch.Command{Action: dispatch.ActionUndo}
	case roll < shareShift+shareClock+shareUndo+shareRedo:
		return dispatch.Command{Action: dispatch.ActionRedo}
	case roll < shareShift+shareClock+shareUndo+shareRedo+sharePeriod:
		return dispatch.Command{Action: dispatch.ActionPeriodNext}
	}
	cmd := dispatch.Command{Action: logActions[rng.IntN(len(logActions))], Slot: slot}
	if cmd.Action == dispatch.ActionLogPass || cmd.Action == dispatch.ActionLogGoal {
		// a teammate receives the pass or assists the goal
		half := slots / 2
		base := 0
		if slot > half {
			base = half
		}
		if partner := base + 1 + rng.IntN(half); partner != slot {
			cmd.Partner = partner
		}
	}
	return cmd
}
