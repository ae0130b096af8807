package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/okian/rinktrack/internal/adapters/repository"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/metrics"
)

// Local answers queries from the locally saved snapshots. It serves the
// dashboard when no hosted database is configured.
type Local struct {
	store repository.Store
}

// NewLocal creates a querier over store.
func NewLocal(store repository.Store) *Local {
	return &Local{store: store}
}

type localQuery func(ctx context.Context, f Filter) ([]Row, error)

func (l *Local) queries() map[string]localQuery {
	return map[string]localQuery{
		"games":       l.games,
		"events":      l.events,
		"shifts":      l.shifts,
		"time_on_ice": l.timeOnIce,
	}
}

// Entities lists the supported entity names.
func (l *Local) Entities() []string {
	names := make([]string, 0, 4)
	for name := range l.queries() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Query runs the named entity query.
func (l *Local) Query(ctx context.Context, entity string, f Filter) ([]Row, error) {
	q, ok := l.queries()[entity]
	if !ok {
		return nil, unknownEntity(entity)
	}
	start := time.Now()
	rows, err := q(ctx, f)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordDataQuery(entity, status, float64(time.Since(start).Microseconds())/1000)
	return rows, err
}

func (l *Local) games(ctx context.Context, f Filter) ([]Row, error) {
	if err := f.check([]string{"status"}); err != nil {
		return nil, err
	}
	limit, err := f.limit()
	if err != nil {
		return nil, err
	}
	games, err := l.store.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	slices.SortFunc(games, func(a, b repository.Summary) int { return b.SavedAt.Compare(a.SavedAt) })

	var out []Row
	for _, g := range games {
		if s := f["status"]; s != "" && string(g.Status) != s {
			continue
		}
		out = append(out, Row{
			"game_id":  g.GameID,
			"revision": g.Revision,
			"status":   string(g.Status),
			"saved_at": g.SavedAt,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *Local) events(ctx context.Context, f Filter) ([]Row, error) {
	if err := f.check([]string{"game_id", "type", "player_id", "period"}, "game_id"); err != nil {
		return nil, err
	}
	limit, err := f.limit()
	if err != nil {
		return nil, err
	}
	period, err := optionalInt(f, "period")
	if err != nil {
		return nil, err
	}
	snap, err := l.latest(ctx, f["game_id"])
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, ev := range snap.Events {
		switch {
		case f["type"] != "" && string(ev.Type) != f["type"]:
			continue
		case f["player_id"] != "" && !slices.Contains(ev.Players, f["player_id"]):
			continue
		case period > 0 && ev.Time.Period != period:
			continue
		}
		out = append(out, Row{
			"id":        ev.ID,
			"type":      string(ev.Type),
			"period":    ev.Time.Period,
			"clock":     ev.Time.Clock(),
			"side":      string(ev.Side),
			"team_id":   ev.TeamID,
			"players":   slices.Clone(ev.Players),
			"highlight": ev.Highlight,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *Local) shifts(ctx context.Context, f Filter) ([]Row, error) {
	if err := f.check([]string{"game_id", "player_id"}, "game_id"); err != nil {
		return nil, err
	}
	limit, err := f.limit()
	if err != nil {
		return nil, err
	}
	snap, err := l.latest(ctx, f["game_id"])
	if err != nil {
		return nil, err
	}

	now := snap.Now()
	var out []Row
	for _, sh := range snap.Shifts {
		if p := f["player_id"]; p != "" && sh.PlayerID != p {
			continue
		}
		row := Row{
			"id":        sh.ID,
			"player_id": sh.PlayerID,
			"side":      string(sh.Side),
			"period":    sh.Period,
			"start":     sh.Start.Clock(),
			"seconds":   sh.Length(now),
			"open":      sh.Open(),
		}
		if sh.End != nil {
			row["end"] = sh.End.Clock()
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *Local) timeOnIce(ctx context.Context, f Filter) ([]Row, error) {
	if err := f.check([]string{"game_id"}, "game_id"); err != nil {
		return nil, err
	}
	limit, err := f.limit()
	if err != nil {
		return nil, err
	}
	snap, err := l.latest(ctx, f["game_id"])
	if err != nil {
		return nil, err
	}

	type total struct{ shifts, seconds int }
	totals := make(map[string]*total)
	now := snap.Now()
	for _, sh := range snap.Shifts {
		t := totals[sh.PlayerID]
		if t == nil {
			t = &total{}
			totals[sh.PlayerID] = t
		}
		t.shifts++
		t.seconds += sh.Length(now)
	}

	out := make([]Row, 0, len(snap.Roster))
	for _, p := range snap.Roster {
		t := totals[p.ID]
		if t == nil {
			t = &total{}
		}
		out = append(out, Row{
			"player_id": p.ID,
			"name":      p.Name,
			"side":      string(p.Side),
			"jersey":    p.Jersey,
			"shifts":    t.shifts,
			"seconds":   t.seconds,
		})
	}
	slices.SortStableFunc(out, func(a, b Row) int { return b["seconds"].(int) - a["seconds"].(int) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Local) latest(ctx context.Context, gameID string) (model.Snapshot, error) {
	snap, err := l.store.Latest(ctx, gameID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Snapshot{}, fmt.Errorf("%w: no saved game %q", ErrInvalidFilter, gameID)
	case err != nil:
		return model.Snapshot{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return snap, nil
}

func optionalInt(f Filter, key string) (int, error) {
	raw := f[key]
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidFilter, key)
	}
	return n, nil
}
