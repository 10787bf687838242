// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-foundation/switchyard/lib/authorization"
	"github.com/switchyard-foundation/switchyard/lib/mailbox"
	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// maxTypingSeconds clamps sandbox-requested typing indicators.
const maxTypingSeconds = 30

// quarantineCompactInterval is how often aged quarantine payloads are
// compressed in place.
const quarantineCompactInterval = time.Hour

// runBus drains the IPC mailboxes on a fixed cadence and periodically
// compacts the quarantine.
func (s *RouterState) runBus(ctx context.Context) {
	ticker := s.Clock.NewTicker(s.Config.Router.IPCInterval.Std())
	defer ticker.Stop()
	compact := s.Clock.NewTicker(quarantineCompactInterval)
	defer compact.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-compact.C:
			s.compactQuarantine()
		case <-ticker.C:
			if err := s.busCycle(ctx); err != nil {
				s.Logger.Error("bus cycle aborted", "error", err)
			}
		}
	}
}

// compactQuarantine compresses quarantined payloads past the retention
// age so dead-letter history stays cheap to keep around.
func (s *RouterState) compactQuarantine() {
	if err := s.Queue.CompactQuarantine(s.Config.Router.QuarantineRetention.Std()); err != nil {
		s.Logger.Warn("quarantine compaction failed", "error", err)
	}
}

func (s *RouterState) busCycle(ctx context.Context) error {
	items, err := s.Queue.Dequeue(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.processItem(ctx, item)
	}
	return nil
}

// processItem handles one mailbox file. Undecodable payloads are
// quarantined; decodable commands that fail authorization or execution
// are acknowledged with a warning (and an error result file, for
// request/response commands) so a broken sandbox cannot wedge the bus.
func (s *RouterState) processItem(ctx context.Context, item mailbox.Item) {
	command, err := schema.DecodeCommand(item.Payload)
	if err != nil {
		s.Logger.Warn("quarantining undecodable ipc file",
			"source", item.Source, "name", item.Name, "error", err)
		if dlErr := s.Queue.DeadLetter(item, err); dlErr != nil {
			s.Logger.Error("dead-letter failed", "name", item.Name, "error", dlErr)
		}
		return
	}

	result, execErr := s.executeCommand(ctx, item.Source, command)
	if execErr != nil {
		s.Logger.Warn("ipc command rejected",
			"source", item.Source, "command", command.CommandName(), "error", execErr)
	}

	if request, ok := command.(schema.RequestCommand); ok && request.CommandRequestID() != "" {
		response := schema.CommandResult{
			RequestID: request.CommandRequestID(),
			OK:        execErr == nil,
			Result:    result,
		}
		if execErr != nil {
			response.Error = execErr.Error()
		}
		payload, err := json.Marshal(response)
		if err != nil {
			s.Logger.Error("encoding command result", "error", err)
		} else if err := s.Queue.WriteResult(item.Source, request.CommandRequestID(), payload); err != nil {
			s.Logger.Error("writing command result",
				"source", item.Source, "request", request.CommandRequestID(), "error", err)
		}
	}

	if err := s.Queue.Ack(item); err != nil {
		s.Logger.Error("ack failed", "name", item.Name, "error", err)
	}
}

// executeCommand runs one decoded command on behalf of source. The
// source folder comes from the mailbox directory; payloads cannot
// claim another issuer. Target chat identities are always resolved
// from the registry by folder, never read from the payload.
func (s *RouterState) executeCommand(ctx context.Context, source string, command schema.Command) (json.RawMessage, error) {
	privileged := s.Config.Router.PrivilegedFolder
	if authorization.RequiredScope(command) == authorization.ScopePrivileged && source != privileged {
		return nil, fmt.Errorf("%s requires the privileged group, issued by %q", command.CommandName(), source)
	}

	switch c := command.(type) {
	case *schema.SendMessage:
		group, err := s.targetGroup(ctx, source, c.Group)
		if err != nil {
			return nil, err
		}
		s.sendChunked(ctx, group.ChatID, c.Text)
		return nil, nil

	case *schema.Typing:
		group, err := s.targetGroup(ctx, source, c.Group)
		if err != nil {
			return nil, err
		}
		s.showTyping(ctx, group.ChatID, c.Seconds)
		return nil, nil

	case *schema.ScheduleTask:
		group, err := s.targetGroup(ctx, source, c.Group)
		if err != nil {
			return nil, err
		}
		now := s.Clock.Now()
		first, err := schema.FirstRun(c.ScheduleType, c.ScheduleValue, now)
		if err != nil {
			return nil, err
		}
		mode := c.ContextMode
		if mode == "" {
			mode = schema.ContextGroup
		}
		task := schema.Task{
			ID:            uuid.NewString(),
			GroupFolder:   group.Folder,
			ChatID:        group.ChatID,
			Prompt:        c.Prompt,
			ScheduleType:  c.ScheduleType,
			ScheduleValue: c.ScheduleValue,
			ContextMode:   mode,
			NextRun:       first,
			Status:        schema.TaskActive,
			CreatedAt:     now,
		}
		if err := s.Registry.CreateTask(ctx, task); err != nil {
			return nil, err
		}
		s.Logger.Info("task scheduled",
			"task", task.ID, "group", task.GroupFolder, "next_run", task.NextRun)
		return json.Marshal(task)

	case *schema.PauseTask:
		task, err := s.ownedTask(ctx, source, c.TaskID)
		if err != nil {
			return nil, err
		}
		if err := s.Registry.SetTaskStatus(ctx, task.ID, schema.TaskPaused); err != nil {
			return nil, err
		}
		return nil, nil

	case *schema.ResumeTask:
		task, err := s.ownedTask(ctx, source, c.TaskID)
		if err != nil {
			return nil, err
		}
		// Recompute the next run so a long pause does not fire a
		// backlog of missed recurrences on resume.
		if next, ok, err := task.NextRunAfter(s.Clock.Now()); err == nil && ok {
			if err := s.Registry.SetTaskNextRun(ctx, task.ID, next); err != nil {
				return nil, err
			}
		}
		if err := s.Registry.SetTaskStatus(ctx, task.ID, schema.TaskActive); err != nil {
			return nil, err
		}
		return nil, nil

	case *schema.CancelTask:
		if _, err := s.ownedTask(ctx, source, c.TaskID); err != nil {
			return nil, err
		}
		if err := s.Registry.DeleteTask(ctx, c.TaskID); err != nil {
			return nil, err
		}
		return nil, nil

	case *schema.RegisterGroup:
		group := schema.RegisteredGroup{
			ChatID:  c.ChatID,
			Name:    c.Name,
			Folder:  c.Folder,
			Trigger: c.Trigger,
			AddedAt: s.Clock.Now(),
		}
		if err := os.MkdirAll(filepath.Join(s.Config.Paths.Groups, group.Folder), 0o755); err != nil {
			return nil, fmt.Errorf("creating group workspace: %w", err)
		}
		if err := s.Registry.UpsertGroup(ctx, group); err != nil {
			return nil, err
		}
		s.Logger.Info("group registered", "folder", group.Folder, "chat", group.ChatID)
		return json.Marshal(group)

	case *schema.RefreshGroups:
		groups, err := s.Registry.Groups(ctx)
		if err != nil {
			return nil, err
		}
		for i := range groups {
			if err := s.writeSnapshot(ctx, &groups[i]); err != nil {
				s.Logger.Warn("snapshot refresh failed", "group", groups[i].Folder, "error", err)
			}
		}
		return nil, nil

	case *schema.DirectMessage:
		s.sendChunked(ctx, c.ChatID, c.Text)
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %T", schema.ErrUnknownCommand, command)
	}
}

// targetGroup resolves the group a command acts on: the named folder,
// or the source's own group when the payload names none. Acting on
// another group's chat requires the privileged identity.
func (s *RouterState) targetGroup(ctx context.Context, source, folder string) (*schema.RegisteredGroup, error) {
	if folder == "" {
		folder = source
	}
	if !authorization.AuthorizeCommand(source, folder, s.Config.Router.PrivilegedFolder) {
		return nil, fmt.Errorf("group %q may not act on group %q", source, folder)
	}
	group, err := s.Registry.GroupByFolder(ctx, folder)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("no registered group %q", folder)
	}
	return group, nil
}

// ownedTask loads a task and checks the source may manage it.
func (s *RouterState) ownedTask(ctx context.Context, source, taskID string) (*schema.Task, error) {
	task, err := s.Registry.TaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("no task %q", taskID)
	}
	if !authorization.AuthorizeCommand(source, task.GroupFolder, s.Config.Router.PrivilegedFolder) {
		return nil, fmt.Errorf("task %q belongs to group %q, not %q", taskID, task.GroupFolder, source)
	}
	return task, nil
}

// showTyping raises the typing indicator for a bounded duration and
// lowers it from a background timer.
func (s *RouterState) showTyping(ctx context.Context, chatID schema.ChatID, seconds int) {
	if seconds <= 0 || seconds > maxTypingSeconds {
		seconds = maxTypingSeconds
	}
	typer := s.typer(chatID)
	if typer == nil {
		return
	}
	session := typer.Start(ctx, chatID)
	s.Clock.AfterFunc(time.Duration(seconds)*time.Second, func() {
		typer.Stop(context.WithoutCancel(ctx), session)
	})
}
