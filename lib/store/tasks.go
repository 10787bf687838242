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

// CreateTask persists a new scheduled task. The caller has already
// validated the schedule and computed NextRun.
func (s *Store) CreateTask(ctx context.Context, task schema.Task) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO tasks (id, group_folder, chat_id, prompt,
			schedule_type, schedule_value, context_mode,
			next_run, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				task.ID,
				task.GroupFolder,
				string(task.ChatID),
				task.Prompt,
				string(task.ScheduleType),
				task.ScheduleValue,
				string(task.ContextMode),
				millis(task.NextRun),
				string(task.Status),
				millis(task.CreatedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("store: create task %s: %w", task.ID, err)
	}
	return nil
}

// TaskByID returns a task, or (nil, nil) when no task has that ID.
func (s *Store) TaskByID(ctx context.Context, id string) (*schema.Task, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var task *schema.Task
	err = sqlitex.Execute(conn,
		taskColumns+" WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t := scanTask(stmt)
				task = &t
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: task %s: %w", id, err)
	}
	return task, nil
}

// TasksForGroup returns a group's tasks ordered by creation time. Used
// for status snapshots.
func (s *Store) TasksForGroup(ctx context.Context, folder string) ([]schema.Task, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var tasks []schema.Task
	err = sqlitex.Execute(conn,
		taskColumns+" WHERE group_folder = ? ORDER BY created_at, id",
		&sqlitex.ExecOptions{
			Args: []any{folder},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tasks = append(tasks, scanTask(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: tasks for %s: %w", folder, err)
	}
	return tasks, nil
}

// DueTasks returns active tasks whose next run is at or before now,
// ordered by due time.
func (s *Store) DueTasks(ctx context.Context, now time.Time) ([]schema.Task, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var tasks []schema.Task
	err = sqlitex.Execute(conn,
		taskColumns+" WHERE status = ? AND next_run <= ? ORDER BY next_run, id",
		&sqlitex.ExecOptions{
			Args: []any{string(schema.TaskActive), millis(now)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tasks = append(tasks, scanTask(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: due tasks: %w", err)
	}
	return tasks, nil
}

// SetTaskStatus transitions a task's lifecycle state.
func (s *Store) SetTaskStatus(ctx context.Context, id string, status schema.TaskStatus) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE tasks SET status = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{string(status), id}})
	if err != nil {
		return fmt.Errorf("store: set task %s status %s: %w", id, status, err)
	}
	return nil
}

// SetTaskNextRun records the computed time of a task's next firing.
func (s *Store) SetTaskNextRun(ctx context.Context, id string, next time.Time) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE tasks SET next_run = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{millis(next), id}})
	if err != nil {
		return fmt.Errorf("store: set task %s next run: %w", id, err)
	}
	return nil
}

// DeleteTask removes a cancelled task. Missing IDs are not an error;
// cancel is idempotent.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM tasks WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("store: delete task %s: %w", id, err)
	}
	return nil
}

const taskColumns = `SELECT id, group_folder, chat_id, prompt,
	schedule_type, schedule_value, context_mode,
	next_run, status, created_at FROM tasks`

func scanTask(stmt *sqlite.Stmt) schema.Task {
	return schema.Task{
		ID:            stmt.ColumnText(0),
		GroupFolder:   stmt.ColumnText(1),
		ChatID:        schema.ChatID(stmt.ColumnText(2)),
		Prompt:        stmt.ColumnText(3),
		ScheduleType:  schema.ScheduleType(stmt.ColumnText(4)),
		ScheduleValue: stmt.ColumnText(5),
		ContextMode:   schema.ContextMode(stmt.ColumnText(6)),
		NextRun:       fromMillis(stmt.ColumnInt64(7)),
		Status:        schema.TaskStatus(stmt.ColumnText(8)),
		CreatedAt:     fromMillis(stmt.ColumnInt64(9)),
	}
}
