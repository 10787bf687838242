// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "switchyard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, `
paths:
  data: /var/lib/switchyard
agent:
  binary: /usr/local/bin/switchyard-sandbox
router:
  privileged_folder: main
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Paths.Database != "/var/lib/switchyard/registry.db" {
		t.Errorf("Database = %q", cfg.Paths.Database)
	}
	if cfg.Paths.Groups != "/var/lib/switchyard/groups" {
		t.Errorf("Groups = %q", cfg.Paths.Groups)
	}
	if cfg.Paths.IPC != "/var/lib/switchyard/ipc" {
		t.Errorf("IPC = %q", cfg.Paths.IPC)
	}
	if cfg.Router.PollInterval.Std() != 2*time.Second {
		t.Errorf("PollInterval = %v", cfg.Router.PollInterval)
	}
	if cfg.Router.BatchSize != 50 {
		t.Errorf("BatchSize = %d", cfg.Router.BatchSize)
	}
	if cfg.Router.QuarantineRetention.Std() != 7*24*time.Hour {
		t.Errorf("QuarantineRetention = %v", cfg.Router.QuarantineRetention)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
paths:
  data: /tmp/sy
  database: /elsewhere/registry.db
agent:
  binary: /bin/sandbox
  timeout: 90s
router:
  privileged_folder: admin
  batch_size: 10
  poll_interval: 500ms
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Database != "/elsewhere/registry.db" {
		t.Errorf("Database = %q", cfg.Paths.Database)
	}
	if cfg.Agent.Timeout.Std() != 90*time.Second {
		t.Errorf("Timeout = %v", cfg.Agent.Timeout)
	}
	if cfg.Router.BatchSize != 10 {
		t.Errorf("BatchSize = %d", cfg.Router.BatchSize)
	}
	if cfg.Router.PollInterval.Std() != 500*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Router.PollInterval)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("SWITCHYARD_TEST_HOME", "/home/router")
	path := writeConfig(t, `
paths:
  data: ${SWITCHYARD_TEST_HOME}/.switchyard
agent:
  binary: /bin/sandbox
router:
  privileged_folder: main
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Data != "/home/router/.switchyard" {
		t.Errorf("Data = %q", cfg.Paths.Data)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate on empty config should fail")
	}
	msg := err.Error()
	for _, want := range []string{"paths.data", "agent.binary", "router.privileged_folder", "batch_size"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate error missing %q: %v", want, msg)
		}
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("SWITCHYARD_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Error("Load without SWITCHYARD_CONFIG should fail")
	}
}
