// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"log/slog"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// ChatRecorder receives discovered chat metadata for every normalized
// event, registered or not, so operators can find identities to
// register. The registry store implements it.
type ChatRecorder interface {
	RecordChat(ctx context.Context, chatID schema.ChatID, name string, lastSeen int64) error
}

// Normalizer folds platform events into the single message shape the
// router consumes. It drops own-echo and bot events and translates
// alias chat identities to canonical ones through a process-lifetime
// table populated by adapters at connection time.
type Normalizer struct {
	recorder ChatRecorder
	logger   *slog.Logger

	// aliases maps alternate identity forms to canonical ones.
	// Unresolvable identities pass through unchanged.
	aliases map[schema.ChatID]schema.ChatID
}

// NewNormalizer builds a Normalizer. A nil recorder disables metadata
// recording (tests); a nil logger discards.
func NewNormalizer(recorder ChatRecorder, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{
		recorder: recorder,
		logger:   logger,
		aliases:  make(map[schema.ChatID]schema.ChatID),
	}
}

// AddAlias registers an alternate identity form for a canonical chat
// identity. Adapters call this as they learn platform alias formats
// (e.g. a phone-number form versus an internal id form).
func (n *Normalizer) AddAlias(alias, canonical schema.ChatID) {
	n.aliases[alias] = canonical
}

// Canonical resolves an identity through the alias table, returning
// the input unchanged when no alias is known. Graceful degradation,
// not an error.
func (n *Normalizer) Canonical(chatID schema.ChatID) schema.ChatID {
	if canonical, ok := n.aliases[chatID]; ok {
		return canonical
	}
	return chatID
}

// Normalize converts one platform event. It returns nil for ignored
// events (own echo, bot authors, empty bodies). Chat metadata is
// recorded for every event with a resolvable identity, whether or not
// a message comes out.
func (n *Normalizer) Normalize(ctx context.Context, event Event) *schema.Message {
	if event.ChatID.IsZero() {
		return nil
	}
	chatID := n.Canonical(event.ChatID)

	if n.recorder != nil {
		if err := n.recorder.RecordChat(ctx, chatID, event.ChatName, event.Timestamp.UnixMilli()); err != nil {
			n.logger.Warn("failed to record chat metadata",
				"chat", chatID, "error", err)
		}
	}

	if event.FromSelf || event.FromBot || event.Body == "" {
		return nil
	}

	return &schema.Message{
		ChatID:    chatID,
		Sender:    event.Sender,
		Body:      event.Body,
		Timestamp: event.Timestamp,
	}
}
