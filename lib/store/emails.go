// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// ProcessedEmail returns the dedup record for a provider message ID,
// or (nil, nil) when the message has never been processed.
func (s *Store) ProcessedEmail(ctx context.Context, id string) (*schema.ProcessedEmail, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var record *schema.ProcessedEmail
	err = sqlitex.Execute(conn, `
		SELECT id, thread_id, sender, subject, processed_at, responded, result
		FROM processed_emails WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = &schema.ProcessedEmail{
					ID:          stmt.ColumnText(0),
					ThreadID:    stmt.ColumnText(1),
					Sender:      stmt.ColumnText(2),
					Subject:     stmt.ColumnText(3),
					ProcessedAt: fromMillis(stmt.ColumnInt64(4)),
					Responded:   stmt.ColumnInt64(5) != 0,
					Result:      stmt.ColumnText(6),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: processed email %s: %w", id, err)
	}
	return record, nil
}

// RecordProcessedEmail writes the dedup record. Called with
// Responded=false and the agent result BEFORE the first reply attempt,
// so a crash between agent run and send retries the send only.
func (s *Store) RecordProcessedEmail(ctx context.Context, record schema.ProcessedEmail) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	responded := 0
	if record.Responded {
		responded = 1
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO processed_emails (id, thread_id, sender, subject, processed_at, responded, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			responded = excluded.responded,
			result = excluded.result`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.ID,
				record.ThreadID,
				record.Sender,
				record.Subject,
				millis(record.ProcessedAt),
				responded,
				record.Result,
			},
		})
	if err != nil {
		return fmt.Errorf("store: record processed email %s: %w", record.ID, err)
	}
	return nil
}

// MarkEmailResponded flips the responded flag after a reply send
// succeeds.
func (s *Store) MarkEmailResponded(ctx context.Context, id string) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE processed_emails SET responded = 1 WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("store: mark email %s responded: %w", id, err)
	}
	return nil
}

// UnrespondedEmails returns records whose agent run finished but whose
// reply never went out. The email poller retries these send-only.
func (s *Store) UnrespondedEmails(ctx context.Context) ([]schema.ProcessedEmail, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var records []schema.ProcessedEmail
	err = sqlitex.Execute(conn, `
		SELECT id, thread_id, sender, subject, processed_at, responded, result
		FROM processed_emails WHERE responded = 0 ORDER BY processed_at`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, schema.ProcessedEmail{
					ID:          stmt.ColumnText(0),
					ThreadID:    stmt.ColumnText(1),
					Sender:      stmt.ColumnText(2),
					Subject:     stmt.ColumnText(3),
					ProcessedAt: fromMillis(stmt.ColumnInt64(4)),
					Responded:   stmt.ColumnInt64(5) != 0,
					Result:      stmt.ColumnText(6),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: unresponded emails: %w", err)
	}
	return records, nil
}
