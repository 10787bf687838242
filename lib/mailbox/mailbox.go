// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package mailbox

import (
	"context"
	"time"
)

// ItemKind distinguishes the two mailbox lanes.
type ItemKind string

const (
	// KindAction is a fire-and-forget command from a group's
	// messages/ directory. No response is written.
	KindAction ItemKind = "action"

	// KindRequest is a request/response command from a group's
	// tasks/ directory. The processor writes a result file keyed by
	// the command's request ID.
	KindRequest ItemKind = "request"
)

// Item is one queued command payload together with its unforgeable
// source identity.
type Item struct {
	// Source is the group folder the item was read from. This is the
	// identity used for authorization; nothing in the payload can
	// override it.
	Source string

	// Kind says which lane the item arrived on.
	Kind ItemKind

	// Name is the backend-assigned unique name of this physical item.
	Name string

	// Payload is the raw command bytes.
	Payload []byte
}

// Queue is the command transport between sandbox and router. Every
// dequeued item must be either Acked or DeadLettered; the backend
// redelivers anything else on the next Dequeue.
type Queue interface {
	// Enqueue adds a payload to a group's lane and returns the
	// assigned item name. Names are unique per enqueue so the same
	// logical command written twice is two items.
	Enqueue(source string, kind ItemKind, payload []byte) (string, error)

	// Dequeue returns all currently pending items across every
	// group, actions before requests within a group, oldest first.
	Dequeue(ctx context.Context) ([]Item, error)

	// Ack removes a processed item permanently.
	Ack(item Item) error

	// DeadLetter moves a failed item to quarantine, preserving the
	// payload for inspection. The reason is recorded alongside.
	DeadLetter(item Item, reason error) error

	// WriteResult publishes a response for a request/response
	// command. The sandbox polls for it by request ID and deletes it
	// once read.
	WriteResult(source, requestID string, payload []byte) error

	// CompactQuarantine compresses quarantined payloads older than
	// maxAge in place, keeping dead-letter history cheap to retain.
	CompactQuarantine(maxAge time.Duration) error
}
