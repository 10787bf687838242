// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// InboundEmail is one unprocessed message pulled from the mail
// provider.
type InboundEmail struct {
	// ID is the provider message ID.
	ID string `json:"id"`

	// ThreadID is the conversation thread key, usually the root
	// Message-ID.
	ThreadID string `json:"thread_id"`

	// Sender is the From address.
	Sender string `json:"sender"`

	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ProcessedEmail records that one inbound email has been handled,
// enforcing exactly-one agent run per message ID across crash-restart.
// Re-polling the mailbox is idempotent because dedup is by ID.
type ProcessedEmail struct {
	// ID is the provider message ID, the dedup key.
	ID string `json:"id"`

	// ThreadID groups the message into its conversation thread.
	ThreadID string `json:"thread_id"`

	// Sender is the From address.
	Sender string `json:"sender"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// ProcessedAt is when the agent run for this message finished.
	ProcessedAt time.Time `json:"processed_at"`

	// Responded is false until the reply send succeeds. A record
	// with Responded=false is retried send-only on the next poll;
	// the agent is never re-invoked for the same ID.
	Responded bool `json:"responded"`

	// Result is the agent output, persisted before the first reply
	// attempt so send retries never depend on re-running the agent.
	Result string `json:"result,omitempty"`
}
