// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// ApprovalStatus is the state of a host-modification request. The
// machine is one-way: pending to approved to applied, pending to
// approved to failed, or pending to denied. There is no re-entry to
// pending.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
	ApprovalApplied  ApprovalStatus = "applied"
	ApprovalFailed   ApprovalStatus = "failed"
)

// HostModificationRequest is a request from the agent to modify the
// host environment, gated by human approval through the owning group's
// chat. Held in process memory only: a restart during the approval
// window loses the record (see the approval package docs).
type HostModificationRequest struct {
	// ID identifies the request in approval keywords
	// ("approve <id>").
	ID string `json:"id"`

	// GroupFolder is the group whose workspace produced the plan.
	GroupFolder string `json:"group_folder"`

	// ChatID is the conversation the approval prompt was sent to,
	// and the only conversation whose approve/deny messages resolve
	// this request.
	ChatID ChatID `json:"chat_id"`

	// Summary is the short plan description shown in the approval
	// prompt.
	Summary string `json:"summary"`

	// FilePath is the current path of the plan artifact. Renamed as
	// the request moves through the machine (.notified, .applied,
	// .denied suffixes).
	FilePath string `json:"file_path"`

	// Timestamp orders pending requests; an unqualified "approve"
	// resolves to the most recent pending request for the chat.
	Timestamp time.Time `json:"timestamp"`

	// Status is the current machine state.
	Status ApprovalStatus `json:"status"`

	// ApprovedBy names who resolved the request.
	ApprovedBy string `json:"approved_by,omitempty"`

	// Error captures the apply failure when Status is failed.
	Error string `json:"error,omitempty"`
}
