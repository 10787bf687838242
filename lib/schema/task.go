// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/cron"
)

// ScheduleType selects how a task's next run is computed.
type ScheduleType string

const (
	// ScheduleCron runs on a standard 5-field cron expression.
	ScheduleCron ScheduleType = "cron"

	// ScheduleInterval runs every fixed number of milliseconds.
	ScheduleInterval ScheduleType = "interval"

	// ScheduleOnce runs a single time at an absolute timestamp.
	ScheduleOnce ScheduleType = "once"
)

// ContextMode selects which agent session a scheduled run uses.
type ContextMode string

const (
	// ContextGroup continues the owning group's session, so the run
	// sees prior conversation state.
	ContextGroup ContextMode = "group"

	// ContextIsolated starts from a fresh session each run.
	ContextIsolated ContextMode = "isolated"
)

// TaskStatus is the task lifecycle state.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
)

// Task is a scheduled agent invocation owned by a group. Created via
// the IPC command bus, consumed by the scheduler loop.
type Task struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`

	// GroupFolder names the owning group. Only the owner (or the
	// privileged group) may pause, resume, or cancel the task.
	GroupFolder string `json:"group_folder"`

	// ChatID is where the task's output is delivered.
	ChatID ChatID `json:"chat_id"`

	// Prompt is the text given to the agent on each run.
	Prompt string `json:"prompt"`

	// ScheduleType and ScheduleValue define the recurrence. The
	// value grammar depends on the type: a cron expression, a
	// positive integer millisecond interval, or an RFC 3339
	// timestamp for one-shot tasks.
	ScheduleType  ScheduleType `json:"schedule_type"`
	ScheduleValue string       `json:"schedule_value"`

	// ContextMode selects group-session or isolated execution.
	ContextMode ContextMode `json:"context_mode"`

	// NextRun is when the scheduler should fire the task next.
	NextRun time.Time `json:"next_run"`

	// Status gates the scheduler: only active tasks run.
	Status TaskStatus `json:"status"`

	// CreatedAt is when the task was scheduled.
	CreatedAt time.Time `json:"created_at"`
}

// FirstRun validates the schedule expression for its declared type and
// returns the first run time strictly after now.
//
// Cron values must parse as a 5-field expression. Interval values must
// be a positive integer number of milliseconds. Once values must be an
// RFC 3339 timestamp in the future.
func FirstRun(scheduleType ScheduleType, value string, now time.Time) (time.Time, error) {
	switch scheduleType {
	case ScheduleCron:
		s, err := cron.Parse(value)
		if err != nil {
			return time.Time{}, err
		}
		next, err := s.Next(now)
		if err != nil {
			return time.Time{}, err
		}
		return next, nil

	case ScheduleInterval:
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("interval %q is not an integer: %w", value, err)
		}
		if ms <= 0 {
			return time.Time{}, fmt.Errorf("interval must be a positive number of milliseconds, got %d", ms)
		}
		return now.Add(time.Duration(ms) * time.Millisecond), nil

	case ScheduleOnce:
		at, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("once timestamp %q: %w", value, err)
		}
		if !at.After(now) {
			return time.Time{}, fmt.Errorf("once timestamp %s is not in the future", at.Format(time.RFC3339))
		}
		return at, nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule type %q", scheduleType)
	}
}

// NextRunAfter computes the run following a completed run at "now".
// Returns (zero, false) for once tasks, which have no next run.
func (t *Task) NextRunAfter(now time.Time) (time.Time, bool, error) {
	switch t.ScheduleType {
	case ScheduleCron:
		s, err := cron.Parse(t.ScheduleValue)
		if err != nil {
			return time.Time{}, false, err
		}
		next, err := s.Next(now)
		if err != nil {
			return time.Time{}, false, err
		}
		return next, true, nil
	case ScheduleInterval:
		ms, err := strconv.ParseInt(t.ScheduleValue, 10, 64)
		if err != nil || ms <= 0 {
			return time.Time{}, false, fmt.Errorf("interval %q invalid", t.ScheduleValue)
		}
		return now.Add(time.Duration(ms) * time.Millisecond), true, nil
	case ScheduleOnce:
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, fmt.Errorf("unknown schedule type %q", t.ScheduleType)
	}
}
