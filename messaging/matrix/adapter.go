// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// SourceName is the prefix this adapter stamps on chat identities.
const SourceName = "matrix"

// typingTimeoutMillis is the server-side typing auto-expiry we
// request. The router's Typer re-signals before it lapses.
const typingTimeoutMillis = 30000

// ChatID builds the canonical chat identity for a room.
func ChatID(roomID string) schema.ChatID {
	return schema.ChatID(SourceName + ":" + roomID)
}

// roomID extracts the Matrix room ID from a chat identity.
func roomID(chatID schema.ChatID) (string, error) {
	id := string(chatID)
	room, ok := strings.CutPrefix(id, SourceName+":")
	if !ok || room == "" {
		return "", fmt.Errorf("matrix: chat identity %q is not a matrix identity", id)
	}
	return room, nil
}

// Name implements messaging.Adapter.
func (c *Client) Name() string { return SourceName }

// SendText sends a plain-text m.room.message event. The transaction
// ID makes homeserver-side retries idempotent.
func (c *Client) SendText(ctx context.Context, chatID schema.ChatID, text string) error {
	room, err := roomID(chatID)
	if err != nil {
		return err
	}
	txn := atomic.AddUint64(&c.txnCounter, 1)
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/m.room.message/switchyard-%d",
		url.PathEscape(room), txn)
	_, err = c.doRequest(ctx, http.MethodPut, path, map[string]any{
		"msgtype": "m.text",
		"body":    text,
	}, nil)
	if err != nil {
		return fmt.Errorf("matrix: sending to %s: %w", room, err)
	}
	return nil
}

// SetTyping signals typing state in a room.
func (c *Client) SetTyping(ctx context.Context, chatID schema.ChatID, typing bool) error {
	room, err := roomID(chatID)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/typing/%s",
		url.PathEscape(room), url.PathEscape(c.userID))
	body := map[string]any{"typing": typing}
	if typing {
		body["timeout"] = typingTimeoutMillis
	}
	if _, err := c.doRequest(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("matrix: typing in %s: %w", room, err)
	}
	return nil
}
