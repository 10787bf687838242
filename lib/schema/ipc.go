// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command is one IPC command read from a group's mailbox. The set of
// kinds is closed: DecodeCommand rejects unknown type values instead
// of falling through.
//
// Commands carry no source identity field. The source is the mailbox
// directory the file was read from. It is assigned by the bus and
// never trusted from the payload.
type Command interface {
	// CommandName returns the wire type tag.
	CommandName() string
}

// RequestCommand is a command that expects a response file keyed by
// its request ID in the source group's results directory.
type RequestCommand interface {
	Command
	CommandRequestID() string
}

// Command wire type tags.
const (
	KindSendMessage   = "send_message"
	KindTyping        = "typing"
	KindScheduleTask  = "schedule_task"
	KindPauseTask     = "pause_task"
	KindResumeTask    = "resume_task"
	KindCancelTask    = "cancel_task"
	KindRegisterGroup = "register_group"
	KindRefreshGroups = "refresh_groups"
	KindDirectMessage = "direct_message"
)

// ErrUnknownCommand is wrapped by DecodeCommand for unrecognized type
// tags.
var ErrUnknownCommand = errors.New("unknown command type")

// SendMessage delivers text to a group's chat. Fire-and-forget
// (messages/ directory). The target group's chat identity is resolved
// from the registry by folder name; any identity in the payload is
// ignored.
type SendMessage struct {
	// Group is the target group folder. Empty targets the source
	// group itself.
	Group string `json:"group,omitempty"`

	// Text is the message body.
	Text string `json:"text"`
}

func (SendMessage) CommandName() string { return KindSendMessage }

// Typing shows a typing indicator in a group's chat for a bounded
// duration. Fire-and-forget.
type Typing struct {
	Group string `json:"group,omitempty"`

	// Seconds bounds the indicator duration; the bus clamps it to
	// its configured maximum.
	Seconds int `json:"seconds,omitempty"`
}

func (Typing) CommandName() string { return KindTyping }

// ScheduleTask creates a scheduled agent invocation.
type ScheduleTask struct {
	RequestID string `json:"request_id,omitempty"`

	// Group is the folder of the group the task belongs to. A
	// non-privileged source may only name itself.
	Group string `json:"group,omitempty"`

	Prompt        string       `json:"prompt"`
	ScheduleType  ScheduleType `json:"schedule_type"`
	ScheduleValue string       `json:"schedule_value"`
	ContextMode   ContextMode  `json:"context_mode,omitempty"`
}

func (ScheduleTask) CommandName() string        { return KindScheduleTask }
func (c ScheduleTask) CommandRequestID() string { return c.RequestID }

// PauseTask suspends a task the source owns.
type PauseTask struct {
	RequestID string `json:"request_id,omitempty"`
	TaskID    string `json:"task_id"`
}

func (PauseTask) CommandName() string        { return KindPauseTask }
func (c PauseTask) CommandRequestID() string { return c.RequestID }

// ResumeTask reactivates a paused task the source owns.
type ResumeTask struct {
	RequestID string `json:"request_id,omitempty"`
	TaskID    string `json:"task_id"`
}

func (ResumeTask) CommandName() string        { return KindResumeTask }
func (c ResumeTask) CommandRequestID() string { return c.RequestID }

// CancelTask removes a task the source owns.
type CancelTask struct {
	RequestID string `json:"request_id,omitempty"`
	TaskID    string `json:"task_id"`
}

func (CancelTask) CommandName() string        { return KindCancelTask }
func (c CancelTask) CommandRequestID() string { return c.RequestID }

// RegisterGroup enrolls a chat identity as a new group. Privileged
// source only.
type RegisterGroup struct {
	RequestID string `json:"request_id,omitempty"`
	ChatID    ChatID `json:"chat_id"`
	Name      string `json:"name"`
	Folder    string `json:"folder"`
	Trigger   string `json:"trigger,omitempty"`
}

func (RegisterGroup) CommandName() string        { return KindRegisterGroup }
func (c RegisterGroup) CommandRequestID() string { return c.RequestID }

// RefreshGroups re-snapshots available-group metadata for all
// sandboxes. Privileged source only.
type RefreshGroups struct {
	RequestID string `json:"request_id,omitempty"`
}

func (RefreshGroups) CommandName() string        { return KindRefreshGroups }
func (c RefreshGroups) CommandRequestID() string { return c.RequestID }

// DirectMessage sends text straight to a chat identity that need not
// be a registered group. Privileged source only.
type DirectMessage struct {
	RequestID string `json:"request_id,omitempty"`
	ChatID    ChatID `json:"chat_id"`
	Text      string `json:"text"`
}

func (DirectMessage) CommandName() string        { return KindDirectMessage }
func (c DirectMessage) CommandRequestID() string { return c.RequestID }

// commandEnvelope carries just the discriminator for two-phase decode.
type commandEnvelope struct {
	Type string `json:"type"`
}

// DecodeCommand parses one IPC command file payload. The type tag
// selects the concrete struct; unknown tags return an error wrapping
// ErrUnknownCommand, and missing required fields fail validation.
func DecodeCommand(data []byte) (Command, error) {
	var envelope commandEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("ipc envelope: %w", err)
	}

	var command Command
	switch envelope.Type {
	case KindSendMessage:
		command = &SendMessage{}
	case KindTyping:
		command = &Typing{}
	case KindScheduleTask:
		command = &ScheduleTask{}
	case KindPauseTask:
		command = &PauseTask{}
	case KindResumeTask:
		command = &ResumeTask{}
	case KindCancelTask:
		command = &CancelTask{}
	case KindRegisterGroup:
		command = &RegisterGroup{}
	case KindRefreshGroups:
		command = &RefreshGroups{}
	case KindDirectMessage:
		command = &DirectMessage{}
	case "":
		return nil, fmt.Errorf("ipc envelope missing type field")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, envelope.Type)
	}

	if err := json.Unmarshal(data, command); err != nil {
		return nil, fmt.Errorf("ipc %s payload: %w", envelope.Type, err)
	}
	if err := validateCommand(command); err != nil {
		return nil, fmt.Errorf("ipc %s: %w", envelope.Type, err)
	}
	return command, nil
}

// EncodeCommand marshals a command with its type tag, producing the
// wire form DecodeCommand accepts. Used by tests and by the sandbox
// client half of the bus.
func EncodeCommand(command Command) ([]byte, error) {
	inner, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("ipc encode %s: %w", command.CommandName(), err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(inner, &fields); err != nil {
		return nil, fmt.Errorf("ipc encode %s: %w", command.CommandName(), err)
	}
	fields["type"] = command.CommandName()
	return json.Marshal(fields)
}

// validateCommand checks required fields per command kind.
func validateCommand(command Command) error {
	switch c := command.(type) {
	case *SendMessage:
		if c.Text == "" {
			return fmt.Errorf("text is required")
		}
	case *Typing:
		if c.Seconds < 0 {
			return fmt.Errorf("seconds must be non-negative")
		}
	case *ScheduleTask:
		if c.Prompt == "" {
			return fmt.Errorf("prompt is required")
		}
		if c.ScheduleType == "" {
			return fmt.Errorf("schedule_type is required")
		}
		if c.ScheduleValue == "" {
			return fmt.Errorf("schedule_value is required")
		}
		if c.ContextMode != "" && c.ContextMode != ContextGroup && c.ContextMode != ContextIsolated {
			return fmt.Errorf("context_mode %q is not group or isolated", c.ContextMode)
		}
	case *PauseTask:
		if c.TaskID == "" {
			return fmt.Errorf("task_id is required")
		}
	case *ResumeTask:
		if c.TaskID == "" {
			return fmt.Errorf("task_id is required")
		}
	case *CancelTask:
		if c.TaskID == "" {
			return fmt.Errorf("task_id is required")
		}
	case *RegisterGroup:
		if c.ChatID.IsZero() {
			return fmt.Errorf("chat_id is required")
		}
		if c.Folder == "" {
			return fmt.Errorf("folder is required")
		}
	case *DirectMessage:
		if c.ChatID.IsZero() {
			return fmt.Errorf("chat_id is required")
		}
		if c.Text == "" {
			return fmt.Errorf("text is required")
		}
	}
	return nil
}

// CommandResult is the response file body for request/response
// commands, written to results/<request_id>.json in the source group's
// mailbox. The sandbox polls for it with a bounded timeout and deletes
// it after reading.
type CommandResult struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`

	// Result holds command-specific payload (e.g. the created task).
	Result json.RawMessage `json:"result,omitempty"`
}
