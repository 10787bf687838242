// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses standard 5-field cron expressions and computes
// the next matching time. It exists so the IPC command bus can
// validate schedule_task expressions and the scheduler can compute run
// times without pulling in a full job-runner dependency.
//
// All computation is in UTC.
package cron
