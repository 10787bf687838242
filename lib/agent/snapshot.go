// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotFile is the name of the read-only state snapshot written
// into a group's workspace before each invocation.
const SnapshotFile = "switchyard-state.json"

// WriteSnapshot writes the snapshot into a group workspace directory.
// The write is atomic so the sandbox never reads a half-written file.
func WriteSnapshot(groupDir string, snapshot any) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("agent: marshaling snapshot: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(groupDir, SnapshotFile)
	tmp, err := os.CreateTemp(groupDir, "."+SnapshotFile+".tmp*")
	if err != nil {
		return fmt.Errorf("agent: snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("agent: writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("agent: closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("agent: publishing snapshot: %w", err)
	}
	return nil
}
