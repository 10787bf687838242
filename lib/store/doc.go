// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the Registry Store: durable, key-indexed state for
// the router. It holds registered groups, per-folder agent sessions,
// delivery watermarks, the normalized message log, scheduled tasks,
// processed-email dedup records, and discovered chat metadata.
//
// The backing database is SQLite in WAL mode behind a fixed-size
// connection pool. Routing loops share a single logical process, so
// the store needs no coordination beyond SQLite's own serialization.
// Watermark writes still enforce monotonicity in SQL so a buggy caller
// can never move a watermark backwards.
package store
