// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the shared data model of the Switchyard
// router: registered groups, chat messages, scheduled tasks, processed
// email records, host-modification approval requests, agent invocation
// shapes, and the closed set of IPC commands the sandbox may issue.
//
// Types here are plain records. Behavior (storage, authorization,
// routing) lives in the packages that own it.
package schema
