// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/authorization"
	"github.com/switchyard-foundation/switchyard/lib/clock"
	"github.com/switchyard-foundation/switchyard/lib/schema"
)

type fakeApplier struct {
	invoked   int
	lastPlan  string
	response  schema.InvocationResponse
	returnErr error
}

func (f *fakeApplier) Invoke(_ context.Context, request schema.InvocationRequest) (schema.InvocationResponse, error) {
	f.invoked++
	f.lastPlan = request.Prompt
	return f.response, f.returnErr
}

func writePlan(t *testing.T, groupsDir, folder, content string) {
	t.Helper()
	dir := filepath.Join(groupsDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, PlanFile), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func testGroups() []schema.RegisteredGroup {
	return []schema.RegisteredGroup{
		{ChatID: "socket:main", Name: "Main", Folder: "main"},
	}
}

func TestScanAnnouncesOnce(t *testing.T) {
	groupsDir := t.TempDir()
	clk := clock.Fake(time.Unix(1000, 0).UTC())
	m := NewManager(&fakeApplier{}, clk, nil)

	writePlan(t, groupsDir, "main", "## Summary\n\nInstall the new compiler toolchain.\n")

	first := m.Scan(groupsDir, testGroups())
	if len(first) != 1 {
		t.Fatalf("first scan announced %d, want 1", len(first))
	}
	if first[0].ChatID != "socket:main" {
		t.Errorf("announcement chat = %s", first[0].ChatID)
	}
	if want := "Install the new compiler toolchain."; !contains(first[0].Text, want) {
		t.Errorf("announcement %q missing summary %q", first[0].Text, want)
	}

	// The plan file was renamed; a second scan is silent.
	second := m.Scan(groupsDir, testGroups())
	if len(second) != 0 {
		t.Errorf("second scan announced %d, want 0", len(second))
	}
	if _, err := os.Stat(filepath.Join(groupsDir, "main", PlanFile+notifiedSuffix)); err != nil {
		t.Errorf("notified file missing: %v", err)
	}
}

func TestResolveNoPendingIsNoOp(t *testing.T) {
	m := NewManager(&fakeApplier{}, clock.Fake(time.Unix(1000, 0).UTC()), nil)

	outcome, ok := m.Resolve(context.Background(), "socket:main", authorization.VerbApprove, "", "alice")
	if ok || outcome != nil {
		t.Errorf("Resolve with nothing pending = (%+v, %v), want no-op", outcome, ok)
	}
}

func TestUnqualifiedApproveResolvesMostRecent(t *testing.T) {
	groupsDir := t.TempDir()
	clk := clock.Fake(time.Unix(1000, 0).UTC())
	applier := &fakeApplier{response: schema.InvocationResponse{Status: schema.InvocationSuccess, Result: "done"}}
	m := NewManager(applier, clk, nil)

	writePlan(t, groupsDir, "main", "first plan\n")
	m.Scan(groupsDir, testGroups())

	// The first plan's notified file would collide with the second
	// plan's rename target. Move it aside the way a real workspace
	// would have distinct plans over time.
	firstNotified := filepath.Join(groupsDir, "main", PlanFile+notifiedSuffix)
	firstAside := filepath.Join(groupsDir, "main", "old-"+PlanFile+notifiedSuffix)
	if err := os.Rename(firstNotified, firstAside); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	var firstID string
	for id := range m.requests {
		firstID = id
	}
	m.requests[firstID].FilePath = firstAside

	clk.Advance(time.Minute)
	writePlan(t, groupsDir, "main", "second plan\n")
	m.Scan(groupsDir, testGroups())

	outcome, ok := m.Resolve(context.Background(), "socket:main", authorization.VerbApprove, "", "alice")
	if !ok {
		t.Fatal("Resolve did not match a pending request")
	}
	if applier.lastPlan != "second plan\n" {
		t.Errorf("applied plan = %q, want the most recent", applier.lastPlan)
	}
	if !contains(outcome.Text, "done") {
		t.Errorf("outcome %q missing apply result", outcome.Text)
	}

	// The older request is still pending.
	if !m.HasPending("socket:main") {
		t.Error("older request should still be pending")
	}
}

func TestDenyRenamesAndStops(t *testing.T) {
	groupsDir := t.TempDir()
	applier := &fakeApplier{}
	m := NewManager(applier, clock.Fake(time.Unix(1000, 0).UTC()), nil)

	writePlan(t, groupsDir, "main", "risky plan\n")
	m.Scan(groupsDir, testGroups())

	outcome, ok := m.Resolve(context.Background(), "socket:main", authorization.VerbDeny, "", "bob")
	if !ok {
		t.Fatal("Resolve did not match")
	}
	if applier.invoked != 0 {
		t.Errorf("applier invoked %d times on deny, want 0", applier.invoked)
	}
	if !contains(outcome.Text, "Denied") {
		t.Errorf("outcome = %q", outcome.Text)
	}
	if _, err := os.Stat(filepath.Join(groupsDir, "main", PlanFile+deniedSuffix)); err != nil {
		t.Errorf("denied file missing: %v", err)
	}
	if m.HasPending("socket:main") {
		t.Error("request still pending after deny")
	}
}

func TestApproveSuccessRenamesApplied(t *testing.T) {
	groupsDir := t.TempDir()
	applier := &fakeApplier{response: schema.InvocationResponse{Status: schema.InvocationSuccess, Result: "patched"}}
	m := NewManager(applier, clock.Fake(time.Unix(1000, 0).UTC()), nil)

	writePlan(t, groupsDir, "main", "good plan\n")
	announcements := m.Scan(groupsDir, testGroups())
	if len(announcements) != 1 {
		t.Fatalf("announced %d, want 1", len(announcements))
	}

	outcome, ok := m.Resolve(context.Background(), "socket:main", authorization.VerbApprove, "", "alice")
	if !ok {
		t.Fatal("Resolve did not match")
	}
	if applier.invoked != 1 || applier.lastPlan != "good plan\n" {
		t.Errorf("applier: invoked=%d plan=%q", applier.invoked, applier.lastPlan)
	}
	if !contains(outcome.Text, "patched") {
		t.Errorf("outcome = %q", outcome.Text)
	}
	if _, err := os.Stat(filepath.Join(groupsDir, "main", PlanFile+appliedSuffix)); err != nil {
		t.Errorf("applied file missing: %v", err)
	}
}

func TestApproveFailureKeepsNotifiedFile(t *testing.T) {
	groupsDir := t.TempDir()
	applier := &fakeApplier{returnErr: errors.New("sandbox crashed")}
	m := NewManager(applier, clock.Fake(time.Unix(1000, 0).UTC()), nil)

	writePlan(t, groupsDir, "main", "doomed plan\n")
	m.Scan(groupsDir, testGroups())

	var id string
	for requestID := range m.requests {
		id = requestID
	}

	outcome, ok := m.Resolve(context.Background(), "socket:main", authorization.VerbApprove, id, "alice")
	if !ok {
		t.Fatal("Resolve did not match")
	}
	if !contains(outcome.Text, "failed") {
		t.Errorf("outcome = %q", outcome.Text)
	}

	request := m.Request(id)
	if request.Status != schema.ApprovalFailed {
		t.Errorf("status = %s, want failed", request.Status)
	}
	if request.Error == "" {
		t.Error("failure error not captured on request")
	}
	// The artifact keeps its notified name on failure.
	if _, err := os.Stat(filepath.Join(groupsDir, "main", PlanFile+notifiedSuffix)); err != nil {
		t.Errorf("notified file missing after failed apply: %v", err)
	}
}

func TestResolveWrongChatDoesNotMatch(t *testing.T) {
	groupsDir := t.TempDir()
	m := NewManager(&fakeApplier{}, clock.Fake(time.Unix(1000, 0).UTC()), nil)

	writePlan(t, groupsDir, "main", "plan\n")
	m.Scan(groupsDir, testGroups())

	var id string
	for requestID := range m.requests {
		id = requestID
	}

	// Another chat cannot resolve main's request, even by ID.
	if _, ok := m.Resolve(context.Background(), "socket:other", authorization.VerbApprove, id, "mallory"); ok {
		t.Error("request resolved from a different chat")
	}
	if !m.HasPending("socket:main") {
		t.Error("request no longer pending")
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
