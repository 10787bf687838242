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

// SaveMessage appends one normalized message to the log. Every message
// the normalizer accepts is persisted, registered chat or not, so a
// later registration sees history.
func (s *Store) SaveMessage(ctx context.Context, message schema.Message) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO messages (chat_id, sender, body, ts) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{
				string(message.ChatID),
				message.Sender,
				message.Body,
				millis(message.Timestamp),
			},
		})
	if err != nil {
		return fmt.Errorf("store: save message for %s: %w", message.ChatID, err)
	}
	return nil
}

// MessagesAfter returns up to limit messages from registered chats
// with timestamp strictly after ts, ascending. This is the router's
// delivery-cycle fetch: everything above the global watermark, in
// order, bounded.
func (s *Store) MessagesAfter(ctx context.Context, ts time.Time, limit int) ([]schema.Message, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var messages []schema.Message
	err = sqlitex.Execute(conn, `
		SELECT m.chat_id, m.sender, m.body, m.ts
		FROM messages m
		JOIN groups g ON g.chat_id = m.chat_id
		WHERE m.ts > ?
		ORDER BY m.ts, m.seq
		LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{millis(ts), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				messages = append(messages, scanMessage(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: messages after %s: %w", ts, err)
	}
	return messages, nil
}

// ChatMessagesAfter returns a single chat's messages with timestamp
// strictly after ts, ascending. This builds the missed-context block
// for an agent turn.
func (s *Store) ChatMessagesAfter(ctx context.Context, chatID schema.ChatID, ts time.Time) ([]schema.Message, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var messages []schema.Message
	err = sqlitex.Execute(conn, `
		SELECT chat_id, sender, body, ts
		FROM messages
		WHERE chat_id = ? AND ts > ?
		ORDER BY ts, seq`,
		&sqlitex.ExecOptions{
			Args: []any{string(chatID), millis(ts)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				messages = append(messages, scanMessage(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: chat messages for %s after %s: %w", chatID, ts, err)
	}
	return messages, nil
}

func scanMessage(stmt *sqlite.Stmt) schema.Message {
	return schema.Message{
		ChatID:    schema.ChatID(stmt.ColumnText(0)),
		Sender:    stmt.ColumnText(1),
		Body:      stmt.ColumnText(2),
		Timestamp: fromMillis(stmt.ColumnInt64(3)),
	}
}
