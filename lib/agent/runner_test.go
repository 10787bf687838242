// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

func TestNewSandboxRequiresBinary(t *testing.T) {
	if _, err := NewSandbox(SandboxConfig{}); err == nil {
		t.Error("NewSandbox with no binary should fail")
	}
}

func TestNewSandboxDefaults(t *testing.T) {
	s, err := NewSandbox(SandboxConfig{Binary: "/usr/bin/true"})
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	if s.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", s.timeout, DefaultTimeout)
	}
}

func TestWriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapshot := schema.Snapshot{
		Groups: []schema.GroupSnapshot{{Name: "Planning", Folder: "planning", ChatID: "socket:g1"}},
		Tasks:  []schema.TaskSnapshot{{ID: "t1", GroupFolder: "planning", Status: schema.TaskActive}},
	}
	if err := WriteSnapshot(dir, snapshot); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, SnapshotFile))
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	var got schema.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Groups) != 1 || got.Groups[0].Folder != "planning" {
		t.Errorf("groups = %+v", got.Groups)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "t1" {
		t.Errorf("tasks = %+v", got.Tasks)
	}

	// Overwrite replaces, never appends.
	if err := WriteSnapshot(dir, schema.Snapshot{}); err != nil {
		t.Fatalf("WriteSnapshot (second): %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, SnapshotFile))
	var empty schema.Snapshot
	if err := json.Unmarshal(data, &empty); err != nil {
		t.Fatalf("unmarshal second snapshot: %v", err)
	}
	if len(empty.Groups) != 0 {
		t.Errorf("second snapshot groups = %+v", empty.Groups)
	}
}
