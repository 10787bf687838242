// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package mailbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/clock"
)

func newTestQueue(t *testing.T) (*FSQueue, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Unix(1_700_000_000, 0).UTC())
	q, err := NewFSQueue(t.TempDir(), clk, nil)
	if err != nil {
		t.Fatalf("NewFSQueue: %v", err)
	}
	return q, clk
}

func TestEnqueueDequeueAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	name, err := q.Enqueue("planning", KindAction, []byte(`{"type":"send_message"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if name == "" {
		t.Fatal("Enqueue returned empty name")
	}

	items, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	item := items[0]
	if item.Source != "planning" || item.Kind != KindAction || item.Name != name {
		t.Errorf("item = %+v", item)
	}
	if string(item.Payload) != `{"type":"send_message"}` {
		t.Errorf("payload = %q", item.Payload)
	}

	// Unacked items redeliver.
	again, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue (again): %v", err)
	}
	if len(again) != 1 {
		t.Errorf("unacked item not redelivered: got %d", len(again))
	}

	if err := q.Ack(item); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	after, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue (after ack): %v", err)
	}
	if len(after) != 0 {
		t.Errorf("acked item still present: %+v", after)
	}

	// Ack is idempotent.
	if err := q.Ack(item); err != nil {
		t.Errorf("Ack (repeat): %v", err)
	}
}

func TestDequeueOrdering(t *testing.T) {
	q, clk := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue("g1", KindRequest, []byte("r1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := q.Enqueue("g1", KindAction, []byte("a1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := q.Enqueue("g1", KindAction, []byte("a2")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	// Actions come before requests within a group, oldest first.
	got := []string{string(items[0].Payload), string(items[1].Payload), string(items[2].Payload)}
	want := []string{"a1", "a2", "r1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order = %v, want %v", got, want)
			break
		}
	}
}

func TestDequeueSkipsQuarantine(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	name, err := q.Enqueue("g1", KindRequest, []byte("bad payload"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	items, _ := q.Dequeue(ctx)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	if err := q.DeadLetter(items[0], errors.New("unparseable")); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}

	after, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue (after dead-letter): %v", err)
	}
	if len(after) != 0 {
		t.Errorf("quarantined item redelivered: %+v", after)
	}

	// Payload survives in errors/<source>/, with a reason sidecar.
	entries, err := os.ReadDir(filepath.Join(q.root, quarantineDir, "g1"))
	if err != nil {
		t.Fatalf("reading quarantine: %v", err)
	}
	var payloadFile, reasonFile string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".reason") {
			reasonFile = e.Name()
		} else if strings.HasSuffix(e.Name(), name) {
			payloadFile = e.Name()
		}
	}
	if payloadFile == "" {
		t.Fatalf("quarantined payload missing, have %v", entries)
	}
	data, err := os.ReadFile(filepath.Join(q.root, quarantineDir, "g1", payloadFile))
	if err != nil {
		t.Fatalf("reading quarantined payload: %v", err)
	}
	if string(data) != "bad payload" {
		t.Errorf("quarantined payload = %q", data)
	}
	if reasonFile == "" {
		t.Error("reason sidecar missing")
	}
}

func TestEnqueueRejectsReservedSource(t *testing.T) {
	q, _ := newTestQueue(t)
	if _, err := q.Enqueue(quarantineDir, KindAction, []byte("x")); err == nil {
		t.Error("Enqueue into the quarantine name should fail")
	}
	if _, err := q.Enqueue("", KindAction, []byte("x")); err == nil {
		t.Error("Enqueue with empty source should fail")
	}
}

func TestWriteResult(t *testing.T) {
	q, _ := newTestQueue(t)

	if err := q.WriteResult("g1", "req-1", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(q.root, "g1", resultsSubdir, "req-1.json"))
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("result = %q", data)
	}
}

func TestUniqueNamesForIdenticalPayloads(t *testing.T) {
	q, _ := newTestQueue(t)

	n1, err := q.Enqueue("g1", KindAction, []byte("same"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	n2, err := q.Enqueue("g1", KindAction, []byte("same"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n1 == n2 {
		t.Errorf("identical payloads got the same name %q", n1)
	}

	items, _ := q.Dequeue(context.Background())
	if len(items) != 2 {
		t.Errorf("got %d items, want 2 distinct", len(items))
	}
}

func TestCompactQuarantine(t *testing.T) {
	// Real clock: the age check compares against file modtimes.
	q, err := NewFSQueue(t.TempDir(), clock.Real(), nil)
	if err != nil {
		t.Fatalf("NewFSQueue: %v", err)
	}
	ctx := context.Background()

	if _, err := q.Enqueue("g1", KindAction, []byte("doomed")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	items, _ := q.Dequeue(ctx)
	if err := q.DeadLetter(items[0], errors.New("boom")); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}

	// maxAge zero makes everything currently on disk eligible.
	if err := q.CompactQuarantine(0); err != nil {
		t.Fatalf("CompactQuarantine: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(q.root, quarantineDir, "g1"))
	if err != nil {
		t.Fatalf("reading quarantine: %v", err)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".zst") {
			t.Errorf("uncompressed file remains after compaction: %s", e.Name())
		}
	}
	if len(entries) == 0 {
		t.Error("compaction removed everything instead of compressing")
	}
}
