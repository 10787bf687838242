// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

type recordedChat struct {
	chatID   schema.ChatID
	name     string
	lastSeen int64
}

type fakeRecorder struct {
	records []recordedChat
}

func (f *fakeRecorder) RecordChat(_ context.Context, chatID schema.ChatID, name string, lastSeen int64) error {
	f.records = append(f.records, recordedChat{chatID, name, lastSeen})
	return nil
}

func TestNormalizePassesThrough(t *testing.T) {
	recorder := &fakeRecorder{}
	n := NewNormalizer(recorder, nil)

	ts := time.Unix(1000, 0).UTC()
	message := n.Normalize(context.Background(), Event{
		ChatID:    "socket:g1",
		ChatName:  "Planning",
		Sender:    "alice",
		Body:      "hello",
		Timestamp: ts,
	})
	if message == nil {
		t.Fatal("Normalize returned nil for a real message")
	}
	if message.ChatID != "socket:g1" || message.Sender != "alice" || message.Body != "hello" {
		t.Errorf("message = %+v", message)
	}
	if !message.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v", message.Timestamp)
	}
}

func TestNormalizeIgnoresSelfAndBots(t *testing.T) {
	recorder := &fakeRecorder{}
	n := NewNormalizer(recorder, nil)
	ctx := context.Background()

	if m := n.Normalize(ctx, Event{ChatID: "socket:g1", Sender: "me", Body: "echo", FromSelf: true}); m != nil {
		t.Errorf("own echo produced message %+v", m)
	}
	if m := n.Normalize(ctx, Event{ChatID: "socket:g1", Sender: "other-bot", Body: "beep", FromBot: true}); m != nil {
		t.Errorf("bot message produced message %+v", m)
	}
	if m := n.Normalize(ctx, Event{ChatID: "socket:g1", Sender: "alice", Body: ""}); m != nil {
		t.Errorf("empty body produced message %+v", m)
	}

	// Metadata was still recorded for all three.
	if len(recorder.records) != 3 {
		t.Errorf("recorded %d chats, want 3", len(recorder.records))
	}
}

func TestNormalizeTranslatesAliases(t *testing.T) {
	n := NewNormalizer(nil, nil)
	n.AddAlias("socket:+15551234@alias", "socket:g1")

	message := n.Normalize(context.Background(), Event{
		ChatID: "socket:+15551234@alias",
		Sender: "alice",
		Body:   "hi",
	})
	if message == nil || message.ChatID != "socket:g1" {
		t.Errorf("message = %+v, want canonical identity", message)
	}

	// Unknown identities pass through unchanged.
	passthrough := n.Normalize(context.Background(), Event{
		ChatID: "socket:unknown",
		Sender: "bob",
		Body:   "yo",
	})
	if passthrough == nil || passthrough.ChatID != "socket:unknown" {
		t.Errorf("passthrough = %+v", passthrough)
	}
}

func TestNormalizeDropsZeroIdentity(t *testing.T) {
	recorder := &fakeRecorder{}
	n := NewNormalizer(recorder, nil)

	if m := n.Normalize(context.Background(), Event{Sender: "alice", Body: "hi"}); m != nil {
		t.Errorf("zero identity produced message %+v", m)
	}
	if len(recorder.records) != 0 {
		t.Errorf("zero identity recorded metadata: %+v", recorder.records)
	}
}
