// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// Message is one normalized chat message as persisted in the registry
// store's message log. The router reads the log in timestamp order to
// drive the delivery loop and to rebuild missed context for a group.
type Message struct {
	// ChatID is the conversation the message arrived in.
	ChatID ChatID `json:"chat_id"`

	// Sender is the display name of the author as reported by the
	// channel adapter.
	Sender string `json:"sender"`

	// Body is the plain-text message content.
	Body string `json:"body"`

	// Timestamp is the channel-reported message time. Watermarks
	// compare against this, so adapters must preserve channel
	// ordering within a conversation.
	Timestamp time.Time `json:"timestamp"`
}
