// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent invokes the sandboxed agent runtime. The sandbox is a
// black box: it receives a CBOR-encoded invocation request on stdin
// and writes a CBOR-encoded response to stdout. The router only knows
// the request/response shapes; session tokens are opaque continuation
// handles the sandbox hands back.
//
// Runner is the seam the router and scheduler depend on; the
// subprocess implementation here is the production one, and tests
// substitute fakes.
package agent
