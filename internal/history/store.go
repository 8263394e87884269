// Package history records context switch attempts in a local SQLite
// database so `orchestrator history` can show what happened and when.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 20

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one switch attempt.
type Entry struct {
	ID        string        `json:"id"`
	From      string        `json:"from,omitempty"`
	To        string        `json:"to"`
	State     string        `json:"state"`
	Score     *float64      `json:"score,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Store is the SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS switches (
			id          TEXT PRIMARY KEY,
			from_name   TEXT NOT NULL DEFAULT '',
			to_name     TEXT NOT NULL,
			state       TEXT NOT NULL,
			score       REAL,
			reason      TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_switches_started ON switches(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_switches_to ON switches(to_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts e, assigning an id when it has none.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var score sql.NullFloat64
	if e.Score != nil {
		score = sql.NullFloat64{Float64: *e.Score, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO switches (id, from_name, to_name, state, score, reason, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.From, e.To, e.State, score, e.Reason,
		e.StartedAt.UTC().Format(timeLayout), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("history: record switch to %q: %w", e.To, err)
	}
	return nil
}

// List returns the newest entries first. A limit <= 0 uses DefaultLimit.
// A non-empty project filters to switches targeting it.
func (s *Store) List(ctx context.Context, project string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, from_name, to_name, state, score, reason, started_at, duration_ms FROM switches`
	args := []any{}
	if project != "" {
		query += ` WHERE to_name = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			score   sql.NullFloat64
			started string
			ms      int64
		)
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.State, &score, &e.Reason, &started, &ms); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if score.Valid {
			v := score.Float64
			e.Score = &v
		}
		if e.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("history: parse started_at %q: %w", started, err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
