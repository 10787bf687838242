// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package lockfile enforces single-instance daemon operation with an
// advisory flock on a well-known path. Two routers polling the same
// mailboxes would double-deliver; the lock makes the second starter
// fail fast with a clear error instead.
package lockfile

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Lock is a held exclusive file lock. Release with Unlock; the kernel
// also releases it when the process exits.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive non-blocking lock on path, creating the
// file if needed, and records the holder's PID in it for operator
// inspection.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: opening %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			holder, _ := os.ReadFile(path)
			return nil, fmt.Errorf("lockfile: %s is held by pid %s; another instance is running", path, string(holder))
		}
		return nil, fmt.Errorf("lockfile: locking %s: %w", path, err)
	}

	// Best effort; the lock itself is authoritative.
	if err := file.Truncate(0); err == nil {
		file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}
	return &Lock{file: file, path: path}, nil
}

// Unlock releases the lock and removes the file.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}
	defer func() { l.file = nil }()

	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("lockfile: unlocking %s: %w", l.path, err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("lockfile: closing %s: %w", l.path, err)
	}
	os.Remove(l.path)
	return nil
}
