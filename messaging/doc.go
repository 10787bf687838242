// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging defines the channel boundary: the Adapter
// interface every chat surface implements, the normalizer that folds
// platform events into one message shape, and the outbound helpers
// (payload chunking, typing indication) shared by all channels.
//
// Adapters own platform authentication, reconnection, and rate
// limits. The router only ever sees normalized messages and the
// Adapter methods.
package messaging
