// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package mailbox

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/switchyard-foundation/switchyard/lib/clock"
)

// quarantineDir is the reserved name under the queue root. A group may
// not be called this.
const quarantineDir = "errors"

const (
	actionsSubdir  = "messages"
	requestsSubdir = "tasks"
	resultsSubdir  = "results"
)

// FSQueue is the filesystem Queue backend. The root directory is
// shared with the sandbox via a bind mount; each group sees only its
// own subdirectory.
type FSQueue struct {
	root   string
	clock  clock.Clock
	logger *slog.Logger
}

// NewFSQueue opens (creating if necessary) a queue rooted at dir.
func NewFSQueue(dir string, clk clock.Clock, logger *slog.Logger) (*FSQueue, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if err := os.MkdirAll(filepath.Join(dir, quarantineDir), 0o755); err != nil {
		return nil, fmt.Errorf("mailbox: creating queue root: %w", err)
	}
	return &FSQueue{root: dir, clock: clk, logger: logger}, nil
}

func laneSubdir(kind ItemKind) string {
	if kind == KindRequest {
		return requestsSubdir
	}
	return actionsSubdir
}

func (q *FSQueue) itemPath(item Item) string {
	return filepath.Join(q.root, item.Source, laneSubdir(item.Kind), item.Name)
}

// Enqueue writes a payload into a group's lane. The name embeds the
// enqueue time and a random suffix, so two writes of the same bytes
// are two distinct items.
func (q *FSQueue) Enqueue(source string, kind ItemKind, payload []byte) (string, error) {
	if source == "" || source == quarantineDir {
		return "", fmt.Errorf("mailbox: invalid source %q", source)
	}
	dir := filepath.Join(q.root, source, laneSubdir(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mailbox: creating lane %s: %w", dir, err)
	}
	name := fmt.Sprintf("%d-%s.json", q.clock.Now().UnixMilli(), uuid.NewString()[:8])
	if err := writeFileAtomic(filepath.Join(dir, name), payload); err != nil {
		return "", fmt.Errorf("mailbox: enqueue to %s: %w", dir, err)
	}
	return name, nil
}

// Dequeue scans every group directory (skipping quarantine) and
// returns all pending items, actions before requests within a group,
// oldest first. Items stay on disk until Acked or DeadLettered.
func (q *FSQueue) Dequeue(ctx context.Context) ([]Item, error) {
	entries, err := os.ReadDir(q.root)
	if err != nil {
		return nil, fmt.Errorf("mailbox: reading queue root: %w", err)
	}

	var items []Item
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !entry.IsDir() || entry.Name() == quarantineDir {
			continue
		}
		source := entry.Name()
		for _, kind := range []ItemKind{KindAction, KindRequest} {
			lane, err := q.readLane(source, kind)
			if err != nil {
				q.logger.Warn("skipping unreadable mailbox lane",
					"source", source, "kind", kind, "error", err)
				continue
			}
			items = append(items, lane...)
		}
	}
	return items, nil
}

// readLane lists one group lane. ReadDir returns names sorted, and
// names start with the enqueue timestamp, so the result is oldest
// first.
func (q *FSQueue) readLane(source string, kind ItemKind) ([]Item, error) {
	dir := filepath.Join(q.root, source, laneSubdir(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var items []Item
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		payload, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			q.logger.Warn("skipping unreadable mailbox item",
				"source", source, "name", name, "error", err)
			continue
		}
		items = append(items, Item{Source: source, Kind: kind, Name: name, Payload: payload})
	}
	return items, nil
}

// Ack deletes a processed item. A missing file is fine; a crashed
// predecessor may have processed it already.
func (q *FSQueue) Ack(item Item) error {
	if err := os.Remove(q.itemPath(item)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("mailbox: ack %s: %w", item.Name, err)
	}
	return nil
}

// DeadLetter moves a failed item into quarantine under its source
// group, with a content-hash prefix so identical retried payloads
// collapse to distinguishable names, plus a sidecar file holding the
// failure reason.
func (q *FSQueue) DeadLetter(item Item, reason error) error {
	dir := filepath.Join(q.root, quarantineDir, item.Source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mailbox: creating quarantine for %s: %w", item.Source, err)
	}

	sum := blake3.Sum256(item.Payload)
	name := hex.EncodeToString(sum[:8]) + "-" + item.Name
	dest := filepath.Join(dir, name)
	if err := os.Rename(q.itemPath(item), dest); err != nil {
		return fmt.Errorf("mailbox: quarantine %s: %w", item.Name, err)
	}

	reasonText := "unknown"
	if reason != nil {
		reasonText = reason.Error()
	}
	if err := writeFileAtomic(dest+".reason", []byte(reasonText+"\n")); err != nil {
		q.logger.Warn("failed to record quarantine reason",
			"item", name, "error", err)
	}

	q.logger.Warn("mailbox item quarantined",
		"source", item.Source, "name", item.Name, "reason", reasonText)
	return nil
}

// WriteResult publishes a response file the sandbox polls for.
func (q *FSQueue) WriteResult(source, requestID string, payload []byte) error {
	dir := filepath.Join(q.root, source, resultsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mailbox: creating results dir for %s: %w", source, err)
	}
	path := filepath.Join(dir, requestID+".json")
	if err := writeFileAtomic(path, payload); err != nil {
		return fmt.Errorf("mailbox: write result %s: %w", requestID, err)
	}
	return nil
}

// CompactQuarantine zstd-compresses quarantined payloads older than
// maxAge in place, keeping forensic history cheap to retain. Already
// compressed files and reason sidecars under the age limit are left
// alone.
func (q *FSQueue) CompactQuarantine(maxAge time.Duration) error {
	cutoff := q.clock.Now().Add(-maxAge)
	root := filepath.Join(q.root, quarantineDir)

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, ".zst") {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := compressFile(path); err != nil {
			return fmt.Errorf("mailbox: compacting %s: %w", path, err)
		}
		return nil
	})
}

func compressFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".zst")
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// writeFileAtomic writes via a temp file in the same directory, syncs,
// and renames. Readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
