package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/rinktrack/internal/domain/model"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	game_id    TEXT    NOT NULL,
	revision   INTEGER NOT NULL,
	status     TEXT    NOT NULL,
	saved_at   INTEGER NOT NULL,
	payload    BLOB    NOT NULL,
	PRIMARY KEY (game_id, revision)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_game_rev ON snapshots (game_id, revision DESC);
`

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	cfg config
}

// OpenSQLite opens (creating if needed) a snapshot database at path.
// The path ":memory:" opens a private in-memory database.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, cfg: cfg}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap model.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin save", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(revision) FROM snapshots WHERE game_id = ?`, snap.GameID,
	).Scan(&last); err != nil {
		return s.wrap("read revision", err)
	}
	if last.Valid {
		switch stored := uint64(last.Int64); {
		case snap.Revision == stored:
			return nil
		case snap.Revision < stored:
			return ErrStaleRevision
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (game_id, revision, status, saved_at, payload) VALUES (?, ?, ?, ?, ?)`,
		snap.GameID, int64(snap.Revision), string(snap.Status), s.cfg.now().UnixMilli(), data,
	); err != nil {
		return s.wrap("insert snapshot", err)
	}
	if limit := s.cfg.historyLimit; limit > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM snapshots WHERE game_id = ? AND revision NOT IN (
				SELECT revision FROM snapshots WHERE game_id = ? ORDER BY revision DESC LIMIT ?
			)`, snap.GameID, snap.GameID, limit,
		); err != nil {
			return s.wrap("prune history", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("commit save", err)
	}
	return nil
}

func (s *SQLiteStore) Latest(ctx context.Context, gameID string) (model.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE game_id = ? ORDER BY revision DESC LIMIT 1`, gameID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return model.Snapshot{}, s.wrap("read latest", err)
	}
	return decode(data)
}

func (s *SQLiteStore) History(ctx context.Context, gameID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT revision, saved_at, payload FROM snapshots WHERE game_id = ? ORDER BY revision ASC`, gameID,
	)
	if err != nil {
		return nil, s.wrap("read history", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rev     int64
			savedAt int64
			data    []byte
		)
		if err := rows.Scan(&rev, &savedAt, &data); err != nil {
			return nil, s.wrap("scan history", err)
		}
		snap, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{
			GameID:   gameID,
			Revision: uint64(rev),
			SavedAt:  time.UnixMilli(savedAt).UTC(),
			Snapshot: snap,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate history", err)
	}
	return out, nil
}

func (s *SQLiteStore) Games(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.game_id, s.revision, s.status, s.saved_at
		FROM snapshots s
		JOIN (SELECT game_id, MAX(revision) AS revision FROM snapshots GROUP BY game_id) m
		  ON m.game_id = s.game_id AND m.revision = s.revision
		ORDER BY s.game_id`)
	if err != nil {
		return nil, s.wrap("list games", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			rev     int64
			status  string
			savedAt int64
		)
		if err := rows.Scan(&sum.GameID, &rev, &status, &savedAt); err != nil {
			return nil, s.wrap("scan games", err)
		}
		sum.Revision = uint64(rev)
		sum.Status = model.Status(status)
		sum.SavedAt = time.UnixMilli(savedAt).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate games", err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE game_id = ?`, gameID); err != nil {
		return s.wrap("delete game", err)
	}
	return nil
}

// Close releases the SQLite connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) wrap(what string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w", what, ErrClosed)
	}
	return fmt.Errorf("%s: %w", what, err)
}
