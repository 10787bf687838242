// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/clock"
	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// typingRefresh is how often an active typing indication is
// re-signaled for platforms whose indicators auto-expire.
const typingRefresh = 20 * time.Second

// Typer manages typing indication per chat as a cancellable repeating
// signal. Starting a chat's indicator supersedes any previous one for
// that chat; stopping a session cancels its repeat and best-effort
// clears the platform indicator, unless a newer session has taken the
// chat over. All signaling failures are logged and swallowed.
type Typer struct {
	adapter Adapter
	clock   clock.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	active map[schema.ChatID]*TypingSession
}

// TypingSession is one started indicator run, returned by Start and
// handed back to Stop. A superseded session's Stop is a no-op, so a
// stale deferred or timed stop cannot cancel a newer run's indicator.
type TypingSession struct {
	chatID schema.ChatID
	ticker *clock.Ticker
	done   chan struct{}
}

func (s *TypingSession) stop() {
	s.ticker.Stop()
	close(s.done)
}

// NewTyper builds a Typer over one adapter.
func NewTyper(adapter Adapter, clk clock.Clock, logger *slog.Logger) *Typer {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Typer{
		adapter: adapter,
		clock:   clk,
		logger:  logger,
		active:  make(map[schema.ChatID]*TypingSession),
	}
}

// Start signals typing for a chat and keeps re-signaling until the
// returned session is stopped. A second Start for the same chat
// replaces the first.
func (t *Typer) Start(ctx context.Context, chatID schema.ChatID) *TypingSession {
	session := &TypingSession{
		chatID: chatID,
		ticker: t.clock.NewTicker(typingRefresh),
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	if previous, ok := t.active[chatID]; ok {
		previous.stop()
	}
	t.active[chatID] = session
	t.mu.Unlock()

	t.signal(ctx, chatID, true)

	go func() {
		for {
			select {
			case <-session.done:
				return
			case <-session.ticker.C:
				t.signal(context.Background(), chatID, true)
			}
		}
	}()
	return session
}

// Stop cancels a session's repeat and clears the indicator. A nil or
// superseded session is a no-op; the chat's indicator then belongs to
// the newer session.
func (t *Typer) Stop(ctx context.Context, session *TypingSession) {
	if session == nil {
		return
	}
	t.mu.Lock()
	owned := t.active[session.chatID] == session
	if owned {
		session.stop()
		delete(t.active, session.chatID)
	}
	t.mu.Unlock()

	if owned {
		t.signal(ctx, session.chatID, false)
	}
}

// StopAll cancels every active indicator, for shutdown.
func (t *Typer) StopAll(ctx context.Context) {
	t.mu.Lock()
	chats := make([]schema.ChatID, 0, len(t.active))
	for chatID, session := range t.active {
		session.stop()
		chats = append(chats, chatID)
	}
	t.active = make(map[schema.ChatID]*TypingSession)
	t.mu.Unlock()

	for _, chatID := range chats {
		t.signal(ctx, chatID, false)
	}
}

func (t *Typer) signal(ctx context.Context, chatID schema.ChatID, typing bool) {
	if err := t.adapter.SetTyping(ctx, chatID, typing); err != nil {
		t.logger.Debug("typing signal failed",
			"chat", chatID, "typing", typing, "error", err)
	}
}
