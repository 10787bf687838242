// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a Store. Path is required.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist; the file is created on first open. ":memory:" gives an
	// in-memory database (tests only; pool size is forced to 1
	// because each in-memory connection is independent).
	Path string

	// PoolSize is the connection pool size. Zero or negative
	// defaults to max(NumCPU, 4).
	PoolSize int

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Store is the Registry Store over a SQLite connection pool.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open opens (creating if necessary) the registry database, applies
// standard pragmas to every pooled connection, and ensures the schema
// exists. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}
	openPath := cfg.Path
	if cfg.Path == ":memory:" {
		poolSize = 1
		// sqlitex.NewPool rejects the bare ":memory:" path and
		// requires this URI form instead.
		openPath = "file::memory:?mode=memory&cache=shared"
	}

	pool, err := sqlitex.NewPool(openPath, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	s := &Store{pool: pool, logger: logger, path: cfg.Path}
	if err := s.ensureSchema(); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("registry store opened", "path", cfg.Path, "pool_size", poolSize)
	return s, nil
}

// Close closes all pooled connections. Blocks until borrowed
// connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	return nil
}

// prepareConnection applies standard pragmas once per pooled
// connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	return nil
}

// storeSchema creates every table the router needs. Timestamps are
// Unix milliseconds; zero means "never".
const storeSchema = `
	CREATE TABLE IF NOT EXISTS groups (
		chat_id      TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		folder       TEXT NOT NULL UNIQUE,
		trigger_word TEXT NOT NULL DEFAULT '',
		added_at     INTEGER NOT NULL,
		container    TEXT
	);

	CREATE TABLE IF NOT EXISTS sessions (
		folder     TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watermarks (
		name  TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_watermarks (
		chat_id TEXT PRIMARY KEY,
		value   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq     INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL,
		sender  TEXT NOT NULL,
		body    TEXT NOT NULL,
		ts      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, ts);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);

	CREATE TABLE IF NOT EXISTS chats (
		chat_id   TEXT PRIMARY KEY,
		name      TEXT NOT NULL DEFAULT '',
		last_seen INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id             TEXT PRIMARY KEY,
		group_folder   TEXT NOT NULL,
		chat_id        TEXT NOT NULL,
		prompt         TEXT NOT NULL,
		schedule_type  TEXT NOT NULL,
		schedule_value TEXT NOT NULL,
		context_mode   TEXT NOT NULL,
		next_run       INTEGER NOT NULL,
		status         TEXT NOT NULL,
		created_at     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, next_run);

	CREATE TABLE IF NOT EXISTS processed_emails (
		id           TEXT PRIMARY KEY,
		thread_id    TEXT NOT NULL DEFAULT '',
		sender       TEXT NOT NULL DEFAULT '',
		subject      TEXT NOT NULL DEFAULT '',
		processed_at INTEGER NOT NULL,
		responded    INTEGER NOT NULL DEFAULT 0,
		result       TEXT NOT NULL DEFAULT ''
	);
`

// ensureSchema runs the schema script on one connection.
func (s *Store) ensureSchema() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("store: take for schema: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, storeSchema, nil); err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	return nil
}

// take borrows a connection with the standard error wrapping.
func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: take: %w", err)
	}
	return conn, nil
}

// millis converts a time to the stored Unix millisecond form. The
// zero time maps to 0.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// fromMillis is the inverse of millis.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
