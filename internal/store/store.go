package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the SQLite-backed persistence layer. Schedules use wholesale
// replace semantics: every save rewrites the user's full block list, last
// write wins, no history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs
// migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS schedule_blocks (
		user_id    TEXT NOT NULL,
		position   INTEGER NOT NULL,
		block_id   TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		activity   TEXT NOT NULL,
		category   TEXT NOT NULL,
		days       TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (user_id, position)
	);
	CREATE TABLE IF NOT EXISTS verification_logs (
		user_id      TEXT NOT NULL,
		block_id     TEXT NOT NULL,
		date         TEXT NOT NULL,
		verified     INTEGER NOT NULL,
		focus_score  INTEGER NOT NULL,
		critique     TEXT NOT NULL DEFAULT '',
		distractions TEXT NOT NULL DEFAULT '[]',
		created_at   TEXT NOT NULL,
		PRIMARY KEY (user_id, block_id, date)
	);
	CREATE TABLE IF NOT EXISTS preferences (
		user_id       TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		push_enabled  INTEGER NOT NULL DEFAULT 0,
		email_enabled INTEGER NOT NULL DEFAULT 0,
		email         TEXT NOT NULL DEFAULT '',
		lead_minutes  INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS summaries_sent (
		user_id TEXT NOT NULL,
		date    TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		PRIMARY KEY (user_id, date)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}
