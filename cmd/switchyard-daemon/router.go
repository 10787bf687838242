// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/agent"
	"github.com/switchyard-foundation/switchyard/lib/authorization"
	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// runRouter is the message delivery loop. One cycle fetches every
// message above the global watermark and routes each in order.
func (s *RouterState) runRouter(ctx context.Context) {
	ticker := s.Clock.NewTicker(s.Config.Router.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.deliveryCycle(ctx); err != nil {
				s.Logger.Error("delivery cycle aborted", "error", err)
			}
		}
	}
}

// deliveryCycle implements at-least-once delivery. The global
// watermark advances past a message only once its eligibility decision
// is final (routed or skipped); a routing failure stops the batch so
// the failed message is re-fetched next cycle.
func (s *RouterState) deliveryCycle(ctx context.Context) error {
	watermark, err := s.Registry.GlobalWatermark(ctx)
	if err != nil {
		return err
	}
	batch, err := s.Registry.MessagesAfter(ctx, watermark, s.Config.Router.BatchSize)
	if err != nil {
		return err
	}

	for _, message := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.routeMessage(ctx, message); err != nil {
			s.Logger.Warn("message routing failed; will retry next cycle",
				"chat", message.ChatID, "ts", message.Timestamp, "error", err)
			return nil
		}
		if err := s.Registry.AdvanceGlobalWatermark(ctx, message.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// routeMessage decides one message. A nil return means the decision is
// final (forwarded to the agent, consumed as an approval keyword, or
// skipped as ineligible); an error means the decision could not be
// made and the message must be retried.
func (s *RouterState) routeMessage(ctx context.Context, message schema.Message) error {
	group, err := s.Registry.GroupByChatID(ctx, message.ChatID)
	if err != nil {
		return err
	}
	if group == nil {
		return nil
	}

	// Approval keywords bypass the trigger check entirely. With no
	// pending request the keyword is consumed as a no-op rather than
	// falling through to the agent.
	if verb, requestID, ok := authorization.ParseApprovalKeyword(message.Body); ok {
		if outcome, resolved := s.Approvals.Resolve(ctx, message.ChatID, verb, requestID, message.Sender); resolved {
			s.sendChunked(ctx, outcome.ChatID, outcome.Text)
		}
		return nil
	}

	if !authorization.TriggerMatch(group, message.Body) {
		return nil
	}

	lastAgent, err := s.Registry.AgentWatermark(ctx, message.ChatID)
	if err != nil {
		return err
	}
	missed, err := s.Registry.ChatMessagesAfter(ctx, message.ChatID, lastAgent)
	if err != nil {
		return err
	}
	// Bound the context at the triggering message; anything newer is
	// the next turn's missed context. The triggering message loses its
	// addressing prefix, so the agent sees the request, not the
	// trigger word.
	window := missed[:0:0]
	for _, m := range missed {
		if m.Timestamp.After(message.Timestamp) {
			continue
		}
		if m.Timestamp.Equal(message.Timestamp) && m.Sender == message.Sender && m.Body == message.Body {
			m.Body = authorization.StripTrigger(group, m.Body)
		}
		window = append(window, m)
	}

	result, err := s.invokeForGroup(ctx, group, buildPrompt(window), invokeOptions{})
	if err != nil {
		return err
	}

	if err := s.Registry.AdvanceAgentWatermark(ctx, message.ChatID, message.Timestamp); err != nil {
		return err
	}
	if result != "" {
		s.sendChunked(ctx, message.ChatID, result)
	}
	return nil
}

// invokeOptions modify one agent invocation.
type invokeOptions struct {
	// scheduled marks scheduler-originated runs.
	scheduled bool

	// isolated runs without the group session and discards any
	// returned token.
	isolated bool
}

// invokeForGroup runs one agent turn for a group: write the state
// snapshot, signal typing, invoke, persist the returned session token.
// An agent-side error status is returned as an error so callers treat
// it like any transient invocation failure.
func (s *RouterState) invokeForGroup(ctx context.Context, group *schema.RegisteredGroup, prompt string, opts invokeOptions) (string, error) {
	if err := s.writeSnapshot(ctx, group); err != nil {
		s.Logger.Warn("snapshot write failed", "group", group.Folder, "error", err)
	}

	var token string
	if !opts.isolated {
		var err error
		token, err = s.Registry.Session(ctx, group.Folder)
		if err != nil {
			return "", err
		}
	}

	container, err := schema.LoadContainerConfig(filepath.Join(s.Config.Paths.Groups, group.Folder))
	if err != nil {
		s.Logger.Warn("container override unreadable; using defaults",
			"group", group.Folder, "error", err)
	}

	if typer := s.typer(group.ChatID); typer != nil {
		session := typer.Start(ctx, group.ChatID)
		defer typer.Stop(ctx, session)
	}

	response, err := s.Runner.Invoke(ctx, schema.InvocationRequest{
		Prompt:       prompt,
		SessionToken: token,
		GroupFolder:  group.Folder,
		ChatID:       group.ChatID,
		Privileged:   group.Folder == s.Config.Router.PrivilegedFolder,
		Scheduled:    opts.scheduled,
		Container:    container,
	})
	if err != nil {
		return "", err
	}
	if response.Status != schema.InvocationSuccess {
		return "", fmt.Errorf("agent returned error: %s", response.Error)
	}

	if !opts.isolated && response.NewSessionToken != "" {
		if err := s.Registry.SetSession(ctx, group.Folder, response.NewSessionToken, s.Clock.Now()); err != nil {
			return "", err
		}
	}
	return response.Result, nil
}

// writeSnapshot publishes the read-only groups/tasks view into the
// group's workspace for the sandbox to read out-of-band.
func (s *RouterState) writeSnapshot(ctx context.Context, group *schema.RegisteredGroup) error {
	groups, err := s.Registry.Groups(ctx)
	if err != nil {
		return err
	}
	tasks, err := s.Registry.TasksForGroup(ctx, group.Folder)
	if err != nil {
		return err
	}

	snapshot := schema.Snapshot{GeneratedAt: s.Clock.Now()}
	for _, g := range groups {
		snapshot.Groups = append(snapshot.Groups, schema.GroupSnapshot{
			Name: g.Name, Folder: g.Folder, ChatID: g.ChatID, Trigger: g.Trigger,
		})
	}
	for _, t := range tasks {
		snapshot.Tasks = append(snapshot.Tasks, schema.TaskSnapshot{
			ID: t.ID, GroupFolder: t.GroupFolder, Prompt: t.Prompt,
			ScheduleType: t.ScheduleType, ScheduleValue: t.ScheduleValue,
			NextRun: t.NextRun, Status: t.Status,
		})
	}
	groupDir := filepath.Join(s.Config.Paths.Groups, group.Folder)
	if err := os.MkdirAll(groupDir, 0o755); err != nil {
		return err
	}
	return agent.WriteSnapshot(groupDir, snapshot)
}

// buildPrompt serializes missed context as an ordered, escaped markup
// block the agent can parse unambiguously.
func buildPrompt(messages []schema.Message) string {
	var b strings.Builder
	b.WriteString("<messages>\n")
	for _, message := range messages {
		fmt.Fprintf(&b, "  <message sender=%q timestamp=%q>%s</message>\n",
			escapeXML(message.Sender),
			message.Timestamp.UTC().Format(time.RFC3339),
			escapeXML(message.Body))
	}
	b.WriteString("</messages>")
	return b.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
