// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Switchyard packages.
package testutil
