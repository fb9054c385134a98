// Package transcript keeps an append-only SQLite log of completed
// exchanges. It is an audit surface only: thread context is always
// reconstructed from the platform or served from the in-memory cache,
// never from this log.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS exchanges (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_key TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		prompt     TEXT NOT NULL,
		reply      TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exchanges_thread ON exchanges(thread_key, id)`,
}

// Exchange is one recorded prompt/reply pair.
type Exchange struct {
	ThreadKey string
	UserID    string
	Prompt    string
	Reply     string
	CreatedAt time.Time
}

// Store is a SQLite-backed exchange log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the transcript database at path. The
// database uses WAL mode, a busy timeout, and a single connection (SQLite
// serialises writes anyway).
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("transcript: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis),
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("transcript: %s: %w", pragma, err)
		}
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("transcript: apply schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one exchange. Implements the orchestrator's Recorder.
func (s *Store) Record(ctx context.Context, threadKey, userID, prompt, reply string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (thread_key, user_id, prompt, reply, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		threadKey, userID, prompt, reply,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("transcript: record exchange: %w", err)
	}
	return nil
}

// Recent returns up to limit exchanges, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_key, user_id, prompt, reply, created_at
		FROM exchanges
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("transcript: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var createdAt string
		if err := rows.Scan(&ex.ThreadKey, &ex.UserID, &ex.Prompt, &ex.Reply, &createdAt); err != nil {
			return nil, fmt.Errorf("transcript: scan exchange: %w", err)
		}
		ex.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: iterate exchanges: %w", err)
	}
	return out, nil
}

// Count returns the total number of recorded exchanges.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("transcript: count exchanges: %w", err)
	}
	return n, nil
}
