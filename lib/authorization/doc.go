// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorization decides which inbound messages reach an agent
// and which IPC commands a group may issue.
//
// Inbound eligibility is a pure function of the registered group and
// the message text: a registered chat with no trigger word forwards
// everything; a chat with a trigger word forwards only messages that
// start with that word. Approval keywords (approve/deny) from the
// privileged chat are recognized before the trigger check so that
// pending host modifications can always be resolved.
//
// Command authorization is identity-based: a group may act on its own
// resources, and the privileged group may act on anything. The source
// identity is the workspace directory a command arrived through, never
// anything the payload claims.
package authorization
