// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package approval is the host-change approval state machine. An agent
// that wants to modify the host environment writes a plan file into
// its group workspace; the scanner announces it to the owning chat and
// renames the file so it is never announced twice. A human then
// resolves it with a plain-text approve or deny message.
//
// State transitions are one-way:
//
//	pending -> approved -> applied
//	pending -> approved -> failed
//	pending -> denied
//
// Requests live in process memory only. A restart loses in-flight
// pending and approved-but-unapplied state; the renamed ".notified"
// file stays on disk and is reported at startup so an operator can
// recover it by hand.
package approval
