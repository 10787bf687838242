// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// UpsertGroup inserts or replaces a registered group keyed by chat
// identity. Groups are never deleted automatically; re-registration
// overwrites in place.
func (s *Store) UpsertGroup(ctx context.Context, group schema.RegisteredGroup) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	var containerJSON any
	if group.Container != nil {
		data, err := json.Marshal(group.Container)
		if err != nil {
			return fmt.Errorf("store: marshal container config: %w", err)
		}
		containerJSON = string(data)
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO groups (chat_id, name, folder, trigger_word, added_at, container)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name = excluded.name,
			folder = excluded.folder,
			trigger_word = excluded.trigger_word,
			container = excluded.container`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(group.ChatID),
				group.Name,
				group.Folder,
				group.Trigger,
				millis(group.AddedAt),
				containerJSON,
			},
		})
	if err != nil {
		return fmt.Errorf("store: upsert group %s: %w", group.ChatID, err)
	}
	return nil
}

// GroupByChatID returns the group registered for a chat identity, or
// (nil, nil) when the chat is not registered.
func (s *Store) GroupByChatID(ctx context.Context, chatID schema.ChatID) (*schema.RegisteredGroup, error) {
	return s.groupWhere(ctx, "chat_id = ?", string(chatID))
}

// GroupByFolder returns the group owning a workspace folder, or
// (nil, nil) when no group uses that folder. This is the resolution
// step that turns an IPC source directory into a chat identity.
func (s *Store) GroupByFolder(ctx context.Context, folder string) (*schema.RegisteredGroup, error) {
	return s.groupWhere(ctx, "folder = ?", folder)
}

func (s *Store) groupWhere(ctx context.Context, where string, arg string) (*schema.RegisteredGroup, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var group *schema.RegisteredGroup
	err = sqlitex.Execute(conn,
		"SELECT chat_id, name, folder, trigger_word, added_at, container FROM groups WHERE "+where,
		&sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				g, err := scanGroup(stmt)
				if err != nil {
					return err
				}
				group = g
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: group lookup (%s): %w", where, err)
	}
	return group, nil
}

// Groups returns every registered group, ordered by registration time.
func (s *Store) Groups(ctx context.Context) ([]schema.RegisteredGroup, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var groups []schema.RegisteredGroup
	err = sqlitex.Execute(conn,
		"SELECT chat_id, name, folder, trigger_word, added_at, container FROM groups ORDER BY added_at, chat_id",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				g, err := scanGroup(stmt)
				if err != nil {
					return err
				}
				groups = append(groups, *g)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: listing groups: %w", err)
	}
	return groups, nil
}

func scanGroup(stmt *sqlite.Stmt) (*schema.RegisteredGroup, error) {
	group := schema.RegisteredGroup{
		ChatID:  schema.ChatID(stmt.ColumnText(0)),
		Name:    stmt.ColumnText(1),
		Folder:  stmt.ColumnText(2),
		Trigger: stmt.ColumnText(3),
		AddedAt: fromMillis(stmt.ColumnInt64(4)),
	}
	if containerJSON := stmt.ColumnText(5); containerJSON != "" {
		var container schema.ContainerConfig
		if err := json.Unmarshal([]byte(containerJSON), &container); err != nil {
			return nil, fmt.Errorf("container config for %s: %w", group.ChatID, err)
		}
		group.Container = &container
	}
	return &group, nil
}

// RecordChat updates discovered chat metadata (identity, display name,
// last-seen time). Called by the normalizer for every event, whether
// or not the chat is registered, so operators can find identities to
// register.
func (s *Store) RecordChat(ctx context.Context, chatID schema.ChatID, name string, lastSeen int64) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO chats (chat_id, name, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			last_seen = MAX(chats.last_seen, excluded.last_seen)`,
		&sqlitex.ExecOptions{
			Args: []any{string(chatID), name, lastSeen},
		})
	if err != nil {
		return fmt.Errorf("store: record chat %s: %w", chatID, err)
	}
	return nil
}
