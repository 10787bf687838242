// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "strings"

// ChatID opaquely identifies one conversation across any supported
// channel. The channel adapter that minted the identity prefixes it
// with its source name, e.g. "socket:12036302@g.us",
// "matrix:!abc:example.org", "email:thread-4711".
//
// Router code treats ChatIDs as opaque keys; only adapters parse them.
type ChatID string

// Source returns the channel prefix of the identity ("socket",
// "matrix", "email"), or "" when the identity carries no prefix.
func (id ChatID) Source() string {
	if i := strings.IndexByte(string(id), ':'); i > 0 {
		return string(id)[:i]
	}
	return ""
}

// IsZero reports whether the identity is empty.
func (id ChatID) IsZero() bool { return id == "" }

func (id ChatID) String() string { return string(id) }
