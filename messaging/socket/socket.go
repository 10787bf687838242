// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package socket is the persistent-connection chat channel. The client
// holds one TLS connection to the messaging socket, authenticates with
// a bearer token, and exchanges newline-delimited JSON frames: inbound
// message frames are handed to the normalizer, outbound send and
// typing frames are written on the same connection.
package socket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/clock"
	"github.com/switchyard-foundation/switchyard/lib/schema"
	"github.com/switchyard-foundation/switchyard/messaging"
)

// SourceName is the prefix this adapter stamps on chat identities.
const SourceName = "socket"

// maxReconnectBackoff caps the delay between reconnect attempts.
const maxReconnectBackoff = 30 * time.Second

// ChatID builds the canonical chat identity for a conversation.
func ChatID(conversation string) schema.ChatID {
	return schema.ChatID(SourceName + ":" + conversation)
}

// conversationID extracts the socket conversation from a chat identity.
func conversationID(chatID schema.ChatID) (string, error) {
	id := string(chatID)
	conversation, ok := strings.CutPrefix(id, SourceName+":")
	if !ok || conversation == "" {
		return "", fmt.Errorf("socket: chat identity %q is not a socket identity", id)
	}
	return conversation, nil
}

// frame is one wire message in either direction. The type field says
// which of the remaining fields are meaningful.
type frame struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	Chat     string `json:"chat,omitempty"`
	ChatName string `json:"chat_name,omitempty"`
	Sender   string `json:"sender,omitempty"`
	FromSelf bool   `json:"from_self,omitempty"`
	FromBot  bool   `json:"from_bot,omitempty"`
	Direct   bool   `json:"direct,omitempty"`
	Body     string `json:"body,omitempty"`
	Typing   bool   `json:"typing,omitempty"`
	TS       int64  `json:"ts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Config holds the parameters for creating a Client.
type Config struct {
	// Addr is the host:port of the messaging socket (implicit TLS).
	Addr string

	// Token authenticates the connection.
	Token string

	// Logger is used for structured logging. Nil means discard.
	Logger *slog.Logger

	// Clock drives reconnect backoff. Nil means the real clock.
	Clock clock.Clock
}

// Client is the socket channel adapter. Run maintains the connection;
// SendText and SetTyping fail while disconnected and the bus treats
// that like any other send failure.
type Client struct {
	addr   string
	token  string
	logger *slog.Logger
	clock  clock.Clock

	// dial opens the connection. Tests substitute a pipe.
	dial func(addr string) (net.Conn, error)

	// mu guards enc, which is non-nil only while a connection is
	// authenticated and serving.
	mu  sync.Mutex
	enc *json.Encoder
}

// NewClient creates a socket client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("socket: Addr is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("socket: Token is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Client{
		addr:   cfg.Addr,
		token:  cfg.Token,
		logger: logger,
		clock:  clk,
		dial: func(addr string) (net.Conn, error) {
			return tls.Dial("tcp", addr, nil)
		},
	}, nil
}

// Name implements messaging.Adapter.
func (c *Client) Name() string { return SourceName }

// SendText writes one send frame for an already-chunked payload.
func (c *Client) SendText(ctx context.Context, chatID schema.ChatID, text string) error {
	conversation, err := conversationID(chatID)
	if err != nil {
		return err
	}
	return c.write(frame{Type: "send", Chat: conversation, Body: text})
}

// SetTyping signals typing activity. The platform expires indicators
// on its own, so typing=false is not sent.
func (c *Client) SetTyping(ctx context.Context, chatID schema.ChatID, typing bool) error {
	if !typing {
		return nil
	}
	conversation, err := conversationID(chatID)
	if err != nil {
		return err
	}
	return c.write(frame{Type: "typing", Chat: conversation, Typing: true})
}

func (c *Client) write(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc == nil {
		return fmt.Errorf("socket: not connected")
	}
	if err := c.enc.Encode(f); err != nil {
		return fmt.Errorf("socket: writing %s frame: %w", f.Type, err)
	}
	return nil
}

// Run maintains the connection until ctx is cancelled, handing every
// inbound message frame to deliver. Dial and session failures back off
// and reconnect; the loop only returns on cancellation.
func (c *Client) Run(ctx context.Context, deliver func(messaging.Event)) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := c.dial(c.addr)
		if err != nil {
			c.logger.Warn("socket dial failed; backing off",
				"addr", c.addr, "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(backoff):
			}
			if backoff < maxReconnectBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.serve(ctx, conn, deliver)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("socket connection lost; reconnecting", "error", err)
	}
}

// serve runs one authenticated session: auth handshake, then inbound
// frames until the connection breaks.
func (c *Client) serve(ctx context.Context, conn net.Conn, deliver func(messaging.Event)) error {
	defer conn.Close()
	// Closing the connection is the only way to unblock the decoder on
	// cancellation.
	unregister := context.AfterFunc(ctx, func() { conn.Close() })
	defer unregister()

	enc := json.NewEncoder(conn)
	if err := enc.Encode(frame{Type: "auth", Token: c.token}); err != nil {
		return fmt.Errorf("socket: sending auth: %w", err)
	}
	dec := json.NewDecoder(conn)
	var hello frame
	if err := dec.Decode(&hello); err != nil {
		return fmt.Errorf("socket: reading auth response: %w", err)
	}
	if hello.Type != "ok" {
		return fmt.Errorf("socket: auth rejected: %s", hello.Error)
	}

	c.mu.Lock()
	c.enc = enc
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.enc = nil
		c.mu.Unlock()
	}()
	c.logger.Info("socket connected", "addr", c.addr)

	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("socket: reading frame: %w", err)
		}
		if f.Type != "message" {
			continue
		}
		deliver(messaging.Event{
			ChatID:    ChatID(f.Chat),
			ChatName:  f.ChatName,
			Sender:    f.Sender,
			FromSelf:  f.FromSelf,
			FromBot:   f.FromBot,
			Direct:    f.Direct,
			Body:      f.Body,
			Timestamp: time.UnixMilli(f.TS).UTC(),
		})
	}
}
