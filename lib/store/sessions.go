// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// SetSession stores the agent's continuation token for a group folder,
// overwriting any previous token. One session per folder; sessions are
// never merged or forked.
func (s *Store) SetSession(ctx context.Context, folder, token string, now time.Time) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO sessions (folder, token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(folder) DO UPDATE SET
			token = excluded.token,
			updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{folder, token, millis(now)}})
	if err != nil {
		return fmt.Errorf("store: set session for %s: %w", folder, err)
	}
	return nil
}

// Session returns the stored continuation token for a folder, or ""
// when the folder has no session yet.
func (s *Store) Session(ctx context.Context, folder string) (string, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return "", err
	}
	defer s.pool.Put(conn)

	var token string
	err = sqlitex.Execute(conn,
		"SELECT token FROM sessions WHERE folder = ?",
		&sqlitex.ExecOptions{
			Args: []any{folder},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				token = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("store: session for %s: %w", folder, err)
	}
	return token, nil
}

// globalWatermarkName keys the single cross-chat delivery watermark.
const globalWatermarkName = "global"

// GlobalWatermark returns the timestamp below which every inbound
// message has been decided (processed or skipped). Zero when no
// message has ever been decided.
func (s *Store) GlobalWatermark(ctx context.Context) (time.Time, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer s.pool.Put(conn)

	var value int64
	err = sqlitex.Execute(conn,
		"SELECT value FROM watermarks WHERE name = ?",
		&sqlitex.ExecOptions{
			Args: []any{globalWatermarkName},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return time.Time{}, fmt.Errorf("store: global watermark: %w", err)
	}
	return fromMillis(value), nil
}

// AdvanceGlobalWatermark moves the global watermark to ts. Regression
// is refused in SQL: a value at or below the current watermark leaves
// the row unchanged, preserving monotonicity no matter what the caller
// passes.
func (s *Store) AdvanceGlobalWatermark(ctx context.Context, ts time.Time) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO watermarks (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
		WHERE excluded.value > watermarks.value`,
		&sqlitex.ExecOptions{Args: []any{globalWatermarkName, millis(ts)}})
	if err != nil {
		return fmt.Errorf("store: advance global watermark: %w", err)
	}
	return nil
}

// AgentWatermark returns the timestamp of the last message that
// successfully reached the agent for a chat. Missed context for the
// next turn is every message after this point.
func (s *Store) AgentWatermark(ctx context.Context, chatID schema.ChatID) (time.Time, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer s.pool.Put(conn)

	var value int64
	err = sqlitex.Execute(conn,
		"SELECT value FROM agent_watermarks WHERE chat_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(chatID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return time.Time{}, fmt.Errorf("store: agent watermark for %s: %w", chatID, err)
	}
	return fromMillis(value), nil
}

// AdvanceAgentWatermark moves a chat's agent watermark to ts, refusing
// regression the same way AdvanceGlobalWatermark does.
func (s *Store) AdvanceAgentWatermark(ctx context.Context, chatID schema.ChatID, ts time.Time) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO agent_watermarks (chat_id, value) VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET value = excluded.value
		WHERE excluded.value > agent_watermarks.value`,
		&sqlitex.ExecOptions{Args: []any{string(chatID), millis(ts)}})
	if err != nil {
		return fmt.Errorf("store: advance agent watermark for %s: %w", chatID, err)
	}
	return nil
}
