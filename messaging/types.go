// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// Event is a raw platform event handed to the normalizer by an
// adapter. The chat identity may still be an alias form; sender-self
// detection is the adapter's job because only it knows its own
// identity on the platform.
type Event struct {
	// ChatID is the platform conversation identity, prefixed with
	// the adapter's source name.
	ChatID schema.ChatID

	// ChatName is the conversation display name, when the platform
	// provides one. Recorded for operator discovery.
	ChatName string

	// Sender is the author's display name.
	Sender string

	// FromSelf marks the adapter's own outbound messages echoed
	// back, which must never re-enter routing.
	FromSelf bool

	// FromBot marks messages authored by other automations.
	FromBot bool

	// Direct marks one-on-one conversations, which the router may
	// auto-register on first contact.
	Direct bool

	// Body is the plain text content.
	Body string

	// Timestamp is the platform event time.
	Timestamp time.Time
}

// Adapter is one chat surface. Implementations are responsible for
// platform authentication, reconnect, and rate limiting; the router
// treats sends and typing signals as best-effort.
type Adapter interface {
	// Name is the source prefix this adapter stamps on chat
	// identities ("socket", "matrix", "email").
	Name() string

	// SendText delivers one already-chunked text payload.
	SendText(ctx context.Context, chatID schema.ChatID, text string) error

	// SetTyping signals typing activity. Platforms without a stop
	// primitive may ignore typing=false and rely on auto-expiry.
	SetTyping(ctx context.Context, chatID schema.ChatID, typing bool) error
}
