// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits text into pieces no longer than limit bytes, preferring
// line boundaries, then word boundaries, and hard-splitting only when
// a single word exceeds the limit. Empty input yields no chunks.
func Chunk(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > limit {
		window := remaining[:limit]

		cut := strings.LastIndexByte(window, '\n')
		if cut <= 0 {
			cut = strings.LastIndexByte(window, ' ')
		}
		if cut <= 0 {
			// No boundary inside the window: hard split, backed up so
			// a multi-byte rune is never severed.
			cut = limit
			for cut > 0 && !utf8.RuneStart(remaining[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			chunks = append(chunks, remaining[:cut])
			remaining = remaining[cut:]
			continue
		}
		chunks = append(chunks, remaining[:cut])
		remaining = remaining[cut+1:]
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}
