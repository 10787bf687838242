// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/switchyard-foundation/switchyard/lib/agent"
	"github.com/switchyard-foundation/switchyard/lib/authorization"
	"github.com/switchyard-foundation/switchyard/lib/clock"
	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// PlanFile is the filename an agent writes into its workspace to
// request a host modification.
const PlanFile = "host-plan.md"

const (
	notifiedSuffix = ".notified"
	appliedSuffix  = ".applied"
	deniedSuffix   = ".denied"
)

// resultLimit caps the apply-result text surfaced to chat.
const resultLimit = 500

// Announcement is what the scanner wants sent to a chat when a new
// plan is found.
type Announcement struct {
	ChatID schema.ChatID
	Text   string
}

// Outcome is the chat-visible result of resolving a request.
type Outcome struct {
	ChatID schema.ChatID
	Text   string
}

// Manager owns the in-memory request set and drives the state
// machine. Not safe for concurrent use; the daemon's loops share one
// goroutine-confined instance.
type Manager struct {
	applier agent.Runner
	clock   clock.Clock
	logger  *slog.Logger

	// requests holds every request seen this process lifetime, by ID.
	// Terminal requests stay for id-qualified status queries.
	requests map[string]*schema.HostModificationRequest
}

// NewManager builds a Manager. The applier runs approved plans; nil
// clock and logger get real/discard defaults.
func NewManager(applier agent.Runner, clk clock.Clock, logger *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		applier:  applier,
		clock:    clk,
		logger:   logger,
		requests: make(map[string]*schema.HostModificationRequest),
	}
}

// ReportOrphans logs stranded ".notified" plan files left behind by a
// previous process. They cannot be resumed automatically; an operator
// renames them back to re-announce.
func (m *Manager) ReportOrphans(groupsDir string, groups []schema.RegisteredGroup) {
	for _, group := range groups {
		path := filepath.Join(groupsDir, group.Folder, PlanFile+notifiedSuffix)
		if _, err := os.Stat(path); err == nil {
			m.logger.Warn("stranded plan file from previous run; rename to re-announce",
				"group", group.Folder, "path", path)
		}
	}
}

// Scan looks for new plan files in every registered group's workspace.
// Each found plan becomes a pending request and is renamed so the next
// scan does not re-announce it. Returned announcements are for the
// caller to deliver; delivery failure does not re-pend the request
// (the rename already happened, matching announce-once semantics).
func (m *Manager) Scan(groupsDir string, groups []schema.RegisteredGroup) []Announcement {
	var announcements []Announcement
	for _, group := range groups {
		path := filepath.Join(groupsDir, group.Folder, PlanFile)
		plan, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				m.logger.Warn("unreadable plan file", "group", group.Folder, "error", err)
			}
			continue
		}

		notified := path + notifiedSuffix
		if err := os.Rename(path, notified); err != nil {
			m.logger.Warn("failed to mark plan notified", "group", group.Folder, "error", err)
			continue
		}

		request := &schema.HostModificationRequest{
			ID:          uuid.NewString()[:8],
			GroupFolder: group.Folder,
			ChatID:      group.ChatID,
			Summary:     ExtractSummary(plan),
			FilePath:    notified,
			Timestamp:   m.clock.Now(),
			Status:      schema.ApprovalPending,
		}
		m.requests[request.ID] = request

		m.logger.Info("host modification requested",
			"request", request.ID, "group", group.Folder)
		announcements = append(announcements, Announcement{
			ChatID: group.ChatID,
			Text: fmt.Sprintf(
				"Host change requested (id %s):\n%s\nReply \"approve %s\" or \"deny %s\".",
				request.ID, request.Summary, request.ID, request.ID),
		})
	}
	return announcements
}

// HasPending reports whether any request for the chat is pending.
func (m *Manager) HasPending(chatID schema.ChatID) bool {
	return m.pendingFor(chatID, "") != nil
}

// pendingFor finds the pending request for a chat: by ID when given,
// otherwise the most recent pending one by timestamp.
func (m *Manager) pendingFor(chatID schema.ChatID, id string) *schema.HostModificationRequest {
	if id != "" {
		request := m.requests[id]
		if request != nil && request.Status == schema.ApprovalPending && request.ChatID == chatID {
			return request
		}
		return nil
	}
	var newest *schema.HostModificationRequest
	for _, request := range m.requests {
		if request.Status != schema.ApprovalPending || request.ChatID != chatID {
			continue
		}
		if newest == nil || request.Timestamp.After(newest.Timestamp) {
			newest = request
		}
	}
	return newest
}

// Resolve applies an approve/deny keyword to the chat's pending
// request. With no matching pending request it is a no-op and returns
// (nil, false). Approval invokes the applier synchronously; the
// returned outcome is what the caller should post back to the chat.
func (m *Manager) Resolve(ctx context.Context, chatID schema.ChatID, verb authorization.ApprovalVerb, id, resolvedBy string) (*Outcome, bool) {
	request := m.pendingFor(chatID, id)
	if request == nil {
		m.logger.Info("approval keyword with no pending request",
			"chat", chatID, "verb", verb, "id", id)
		return nil, false
	}

	request.ApprovedBy = resolvedBy
	if verb == authorization.VerbDeny {
		request.Status = schema.ApprovalDenied
		m.rename(request, deniedSuffix)
		m.logger.Info("host modification denied",
			"request", request.ID, "by", resolvedBy)
		return &Outcome{ChatID: chatID, Text: fmt.Sprintf("Denied host change %s.", request.ID)}, true
	}

	request.Status = schema.ApprovalApproved
	m.logger.Info("host modification approved",
		"request", request.ID, "by", resolvedBy)

	plan, err := os.ReadFile(request.FilePath)
	if err != nil {
		request.Status = schema.ApprovalFailed
		request.Error = err.Error()
		return &Outcome{ChatID: chatID, Text: fmt.Sprintf("Applying host change %s failed: %v", request.ID, err)}, true
	}

	response, err := m.applier.Invoke(ctx, schema.InvocationRequest{
		Prompt:      string(plan),
		GroupFolder: request.GroupFolder,
		ChatID:      request.ChatID,
		Privileged:  true,
	})
	if err != nil || response.Status != schema.InvocationSuccess {
		request.Status = schema.ApprovalFailed
		if err != nil {
			request.Error = err.Error()
		} else {
			request.Error = response.Error
		}
		// The file keeps its notified name; the error lives on the
		// request object.
		m.logger.Error("host modification apply failed",
			"request", request.ID, "error", request.Error)
		return &Outcome{ChatID: chatID, Text: fmt.Sprintf("Applying host change %s failed: %s", request.ID, request.Error)}, true
	}

	request.Status = schema.ApprovalApplied
	m.rename(request, appliedSuffix)
	m.logger.Info("host modification applied", "request", request.ID)
	return &Outcome{
		ChatID: chatID,
		Text:   fmt.Sprintf("Applied host change %s:\n%s", request.ID, truncate(response.Result, resultLimit)),
	}, true
}

// Request returns a request by ID for status display, or nil.
func (m *Manager) Request(id string) *schema.HostModificationRequest {
	return m.requests[id]
}

// rename moves the plan artifact from its ".notified" name to a
// terminal suffix and updates FilePath. Rename failure is logged, not
// fatal; the in-memory state is already terminal.
func (m *Manager) rename(request *schema.HostModificationRequest, suffix string) {
	base := filepath.Join(filepath.Dir(request.FilePath), PlanFile)
	dest := base + suffix
	if err := os.Rename(request.FilePath, dest); err != nil {
		m.logger.Warn("failed to rename plan artifact",
			"request", request.ID, "to", dest, "error", err)
		return
	}
	request.FilePath = dest
}
