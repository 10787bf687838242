// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// runScheduler fires due tasks on a fixed cadence.
func (s *RouterState) runScheduler(ctx context.Context) {
	ticker := s.Clock.NewTicker(s.Config.Router.SchedulerInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.schedulerCycle(ctx); err != nil {
				s.Logger.Error("scheduler cycle aborted", "error", err)
			}
		}
	}
}

// schedulerCycle runs every active task whose next_run has arrived. A
// failed run leaves next_run untouched so the task retries next cycle;
// next_run only moves forward after a successful invocation.
func (s *RouterState) schedulerCycle(ctx context.Context) error {
	due, err := s.Registry.DueTasks(ctx, s.Clock.Now())
	if err != nil {
		return err
	}
	for _, task := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runTask(ctx, task)
	}
	return nil
}

func (s *RouterState) runTask(ctx context.Context, task schema.Task) {
	group, err := s.Registry.GroupByFolder(ctx, task.GroupFolder)
	if err != nil {
		s.Logger.Warn("task group lookup failed", "task", task.ID, "error", err)
		return
	}
	if group == nil {
		s.Logger.Warn("dropping task for unregistered group",
			"task", task.ID, "group", task.GroupFolder)
		if err := s.Registry.DeleteTask(ctx, task.ID); err != nil {
			s.Logger.Error("deleting orphaned task", "task", task.ID, "error", err)
		}
		return
	}

	result, err := s.invokeForGroup(ctx, group, task.Prompt, invokeOptions{
		scheduled: true,
		isolated:  task.ContextMode == schema.ContextIsolated,
	})
	if err != nil {
		s.Logger.Warn("scheduled run failed; will retry",
			"task", task.ID, "group", task.GroupFolder, "error", err)
		return
	}
	if result != "" {
		s.sendChunked(ctx, task.ChatID, result)
	}

	next, recurring, err := task.NextRunAfter(s.Clock.Now())
	switch {
	case err != nil:
		// The stored schedule no longer parses. Complete the task
		// instead of refiring it every cycle.
		s.Logger.Error("task schedule invalid; completing",
			"task", task.ID, "error", err)
		if err := s.Registry.SetTaskStatus(ctx, task.ID, schema.TaskCompleted); err != nil {
			s.Logger.Error("completing task", "task", task.ID, "error", err)
		}
	case !recurring:
		if err := s.Registry.SetTaskStatus(ctx, task.ID, schema.TaskCompleted); err != nil {
			s.Logger.Error("completing task", "task", task.ID, "error", err)
		}
	default:
		if err := s.Registry.SetTaskNextRun(ctx, task.ID, next); err != nil {
			s.Logger.Error("advancing task", "task", task.ID, "error", err)
		}
	}
}
