// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"
)

// RegisteredGroup is a conversation enrolled to receive agent
// invocations, keyed by ChatID in the registry store.
type RegisteredGroup struct {
	// ChatID is the conversation this group is bound to.
	ChatID ChatID `json:"chat_id"`

	// Name is the human-readable group name shown in snapshots and
	// logs.
	Name string `json:"name"`

	// Folder is the group's workspace directory name. It doubles as
	// the group's IPC mailbox name and its unforgeable source
	// identity on the command bus.
	Folder string `json:"folder"`

	// Trigger is the word that must prefix a message for the group
	// to invoke the agent. Empty means the group responds to every
	// message. Matching is case-insensitive with a word boundary
	// after the trigger.
	Trigger string `json:"trigger,omitempty"`

	// AddedAt is when the group was registered.
	AddedAt time.Time `json:"added_at"`

	// Container overrides the sandbox container configuration for
	// this group. Nil uses the daemon defaults.
	Container *ContainerConfig `json:"container,omitempty"`
}

// ContainerConfig customizes the agent sandbox for one group. Loaded
// from an optional container.jsonc file in the group folder; the JSONC
// form allows operators to keep comments next to their overrides.
type ContainerConfig struct {
	// Image is the container image reference.
	Image string `json:"image,omitempty"`

	// Memory is the container memory limit (e.g. "2g").
	Memory string `json:"memory,omitempty"`

	// CPUs is the CPU quota. Zero means unlimited.
	CPUs float64 `json:"cpus,omitempty"`

	// Env is extra environment variables passed to the sandbox.
	Env map[string]string `json:"env,omitempty"`

	// Mounts lists extra host paths bind-mounted read-only into the
	// sandbox, in "host:container" form.
	Mounts []string `json:"mounts,omitempty"`
}

// ContainerConfigFile is the per-group override filename.
const ContainerConfigFile = "container.jsonc"

// LoadContainerConfig reads the group folder's container.jsonc, if
// present. Returns (nil, nil) when the file does not exist. Comments
// and trailing commas are permitted; the content is translated to
// strict JSON before unmarshaling.
func LoadContainerConfig(groupDir string) (*ContainerConfig, error) {
	path := filepath.Join(groupDir, ContainerConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var config ContainerConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &config, nil
}
