// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// InvocationRequest is what the router hands the agent sandbox for one
// turn.
type InvocationRequest struct {
	// Prompt is the fully assembled prompt, including the escaped
	// missed-context block.
	Prompt string `json:"prompt"`

	// SessionToken continues a previous session when non-empty. The
	// token is opaque to the router.
	SessionToken string `json:"session_token,omitempty"`

	// GroupFolder is the invoking group's workspace directory.
	GroupFolder string `json:"group_folder"`

	// ChatID is the originating conversation.
	ChatID ChatID `json:"chat_id"`

	// Privileged marks invocations on behalf of the designated main
	// group, which unlocks cross-group IPC commands inside the
	// sandbox.
	Privileged bool `json:"privileged,omitempty"`

	// Scheduled marks scheduler-originated runs, so the agent can
	// distinguish them from conversational turns.
	Scheduled bool `json:"scheduled,omitempty"`

	// Container carries the group's sandbox overrides, when its
	// workspace has a container.jsonc.
	Container *ContainerConfig `json:"container,omitempty"`
}

// InvocationStatus is the outcome of an agent turn.
type InvocationStatus string

const (
	InvocationSuccess InvocationStatus = "success"
	InvocationError   InvocationStatus = "error"
)

// InvocationResponse is the agent sandbox's reply for one turn.
type InvocationResponse struct {
	Status InvocationStatus `json:"status"`

	// Result is the agent's textual output on success.
	Result string `json:"result,omitempty"`

	// NewSessionToken, when non-empty, replaces the group's stored
	// session token.
	NewSessionToken string `json:"new_session_token,omitempty"`

	// Error describes the failure when Status is error.
	Error string `json:"error,omitempty"`
}

// Snapshot is the read-only view of tasks and groups written for the
// sandbox before each invocation, out-of-band from the prompt.
type Snapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Groups      []GroupSnapshot `json:"groups"`
	Tasks       []TaskSnapshot  `json:"tasks"`
}

// GroupSnapshot is the subset of RegisteredGroup visible to sandboxes.
type GroupSnapshot struct {
	Name    string `json:"name"`
	Folder  string `json:"folder"`
	ChatID  ChatID `json:"chat_id"`
	Trigger string `json:"trigger,omitempty"`
}

// TaskSnapshot is the subset of Task visible to sandboxes.
type TaskSnapshot struct {
	ID            string       `json:"id"`
	GroupFolder   string       `json:"group_folder"`
	Prompt        string       `json:"prompt"`
	ScheduleType  ScheduleType `json:"schedule_type"`
	ScheduleValue string       `json:"schedule_value"`
	NextRun       time.Time    `json:"next_run"`
	Status        TaskStatus   `json:"status"`
}
