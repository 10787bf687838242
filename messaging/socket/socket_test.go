// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/testutil"
	"github.com/switchyard-foundation/switchyard/messaging"
)

func TestChatIDRoundTrip(t *testing.T) {
	id := ChatID("12036302@g.us")
	if id != "socket:12036302@g.us" {
		t.Errorf("ChatID = %q", id)
	}
	conversation, err := conversationID(id)
	if err != nil {
		t.Fatalf("conversationID: %v", err)
	}
	if conversation != "12036302@g.us" {
		t.Errorf("conversationID = %q", conversation)
	}

	if _, err := conversationID("matrix:!room:example.org"); err == nil {
		t.Error("conversationID should reject non-socket identities")
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(Config{Token: "tok"}); err == nil {
		t.Error("NewClient without Addr should fail")
	}
	if _, err := NewClient(Config{Addr: "host:1"}); err == nil {
		t.Error("NewClient without Token should fail")
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	client, err := NewClient(Config{Addr: "host:1", Token: "tok"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.SendText(context.Background(), ChatID("c1"), "hi"); err == nil {
		t.Error("SendText without a connection should fail")
	}
}

func TestRunSessionDeliversAndSends(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewClient(Config{Addr: "host:1", Token: "tok"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	clientConn, serverConn := net.Pipe()
	client.dial = func(addr string) (net.Conn, error) { return clientConn, nil }

	outbound := make(chan frame, 8)
	go func() {
		dec := json.NewDecoder(serverConn)
		enc := json.NewEncoder(serverConn)

		var auth frame
		if err := dec.Decode(&auth); err != nil {
			t.Errorf("reading auth: %v", err)
			return
		}
		if auth.Type != "auth" || auth.Token != "tok" {
			t.Errorf("auth frame = %+v", auth)
		}
		enc.Encode(frame{Type: "ok"})
		enc.Encode(frame{
			Type: "message", Chat: "12036302@g.us", ChatName: "Ops",
			Sender: "alice", Direct: true, Body: "ping", TS: 2000,
		})

		for {
			var f frame
			if err := dec.Decode(&f); err != nil {
				return
			}
			outbound <- f
		}
	}()

	events := make(chan messaging.Event, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(ctx, func(event messaging.Event) { events <- event })
	}()

	event := testutil.RequireReceive(t, events, 5*time.Second, "inbound message")
	if event.ChatID != ChatID("12036302@g.us") {
		t.Errorf("chat id = %q", event.ChatID)
	}
	if event.ChatName != "Ops" || event.Sender != "alice" || !event.Direct {
		t.Errorf("event = %+v", event)
	}
	if event.Body != "ping" {
		t.Errorf("body = %q", event.Body)
	}
	if !event.Timestamp.Equal(time.UnixMilli(2000).UTC()) {
		t.Errorf("timestamp = %v", event.Timestamp)
	}

	if err := client.SendText(ctx, ChatID("12036302@g.us"), "pong"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	sent := testutil.RequireReceive(t, outbound, 5*time.Second, "send frame")
	if sent.Type != "send" || sent.Chat != "12036302@g.us" || sent.Body != "pong" {
		t.Errorf("send frame = %+v", sent)
	}

	// typing=false relies on platform auto-expiry: no frame goes out.
	if err := client.SetTyping(ctx, ChatID("12036302@g.us"), false); err != nil {
		t.Fatalf("SetTyping(false): %v", err)
	}
	if err := client.SetTyping(ctx, ChatID("12036302@g.us"), true); err != nil {
		t.Fatalf("SetTyping(true): %v", err)
	}
	typing := testutil.RequireReceive(t, outbound, 5*time.Second, "typing frame")
	if typing.Type != "typing" || !typing.Typing {
		t.Errorf("typing frame = %+v", typing)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestServeRejectsBadAuth(t *testing.T) {
	client, err := NewClient(Config{Addr: "host:1", Token: "wrong"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	clientConn, serverConn := net.Pipe()

	go func() {
		dec := json.NewDecoder(serverConn)
		enc := json.NewEncoder(serverConn)
		var auth frame
		if err := dec.Decode(&auth); err != nil {
			return
		}
		enc.Encode(frame{Type: "error", Error: "bad token"})
	}()

	err = client.serve(context.Background(), clientConn, nil)
	if err == nil || !strings.Contains(err.Error(), "auth rejected") {
		t.Errorf("serve = %v, want auth rejection", err)
	}
}
