// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the router's polling loops and
// timers. Production code injects Real(); tests inject Fake() and
// advance time deterministically.
package clock
