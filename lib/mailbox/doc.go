// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package mailbox is the command queue between the agent sandbox and
// the host router. The abstract Queue interface (enqueue, dequeue,
// acknowledge, dead-letter) hides the backend; the one real backend is
// a filesystem layout the sandbox can reach with nothing but file
// writes:
//
//	<root>/<group>/messages/  fire-and-forget actions
//	<root>/<group>/tasks/     request/response commands
//	<root>/<group>/results/   responses keyed by request ID
//	<root>/errors/<group>/    quarantined payloads
//
// The directory a file is read from is the command's source identity.
// Processing a file ends in exactly one of two ways: acknowledged
// (deleted) or dead-lettered (moved to quarantine, payload preserved
// for inspection). Quarantined files are never retried automatically.
package mailbox
