package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/rinktrack/pkg/logger"
	"github.com/okian/rinktrack/pkg/metrics"
)

type param struct {
	name     string
	required bool
}

// entityQuery is a parameterized read. Optional parameters are bound as
// NULL when absent; the limit is always the last argument.
type entityQuery struct {
	sql    string
	params []param
}

var postgresEntities = map[string]entityQuery{
	"recent_games": {
		sql: `SELECT game_id, game_date, season, home_team, away_team, home_score, away_score, status
			FROM games
			WHERE ($1::text IS NULL OR home_team = $1 OR away_team = $1)
			  AND ($2::text IS NULL OR season = $2)
			ORDER BY game_date DESC
			LIMIT $3`,
		params: []param{{name: "team"}, {name: "season"}},
	},
	"player_rankings": {
		sql: `SELECT player_id, player_name, team, games_played, goals, assists, points
			FROM player_season_stats
			WHERE ($1::text IS NULL OR season = $1)
			  AND ($2::text IS NULL OR team = $2)
			ORDER BY points DESC, goals DESC, player_name
			LIMIT $3`,
		params: []param{{name: "season"}, {name: "team"}},
	},
	"team_standings": {
		sql: `SELECT team, games_played, wins, losses, ot_losses, points, goals_for, goals_against
			FROM team_standings
			WHERE ($1::text IS NULL OR season = $1)
			ORDER BY points DESC, goals_for - goals_against DESC
			LIMIT $2`,
		params: []param{{name: "season"}},
	},
	"box_score": {
		sql: `SELECT player_id, player_name, team, goals, assists, shots, toi_seconds
			FROM game_box_scores
			WHERE game_id = $1
			ORDER BY team, player_name
			LIMIT $2`,
		params: []param{{name: "game_id", required: true}},
	},
}

// pgxQuerier is the subset of *pgxpool.Pool used here.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres answers dashboard queries from the hosted database.
type Postgres struct {
	db     pgxQuerier
	pool   *pgxpool.Pool
	logger logger.Logger
}

// OpenPostgres connects a pool to dsn and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := newPostgres(pool)
	p.pool = pool
	return p, nil
}

func newPostgres(db pgxQuerier) *Postgres {
	return &Postgres{db: db, logger: logger.Get().Named("dataaccess")}
}

// Entities lists the supported entity names.
func (p *Postgres) Entities() []string {
	names := make([]string, 0, len(postgresEntities))
	for name := range postgresEntities {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Query runs the named entity query.
func (p *Postgres) Query(ctx context.Context, entity string, f Filter) ([]Row, error) {
	q, ok := postgresEntities[entity]
	if !ok {
		return nil, unknownEntity(entity)
	}
	args, err := q.args(f)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := p.db.Query(ctx, q.sql, args...)
	var maps []map[string]any
	if err == nil {
		maps, err = pgx.CollectRows(rows, pgx.RowToMap)
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordDataQuery(entity, status, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		p.logger.Error(ctx, "entity query failed", logger.String("entity", entity), logger.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = Row(m)
	}
	return out, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (q entityQuery) args(f Filter) ([]any, error) {
	allowed := make([]string, 0, len(q.params))
	var required []string
	for _, p := range q.params {
		allowed = append(allowed, p.name)
		if p.required {
			required = append(required, p.name)
		}
	}
	if err := f.check(allowed, required...); err != nil {
		return nil, err
	}
	limit, err := f.limit()
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(q.params)+1)
	for _, p := range q.params {
		if v, ok := f[p.name]; ok && v != "" {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return append(args, limit), nil
}
