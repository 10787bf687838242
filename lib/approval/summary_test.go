// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"strings"
	"testing"
)

func TestExtractSummary(t *testing.T) {
	tests := []struct {
		name string
		plan string
		want string
	}{
		{
			name: "summary heading section",
			plan: "# Plan\n\nIntro text.\n\n## Summary\n\nSwap the allocator.\n\n## Details\n\nLots more.\n",
			want: "Swap the allocator.",
		},
		{
			name: "summary heading case-insensitive",
			plan: "## SUMMARY\n\nUpgrade the kernel.\n",
			want: "Upgrade the kernel.",
		},
		{
			name: "no summary heading falls back to first paragraph",
			plan: "# Title\n\nFirst real paragraph.\n\nSecond paragraph.\n",
			want: "First real paragraph.",
		},
		{
			name: "plain text falls back to first line",
			plan: "just a bare line\nand another\n",
			want: "just a bare line",
		},
		{
			name: "empty plan",
			plan: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSummary([]byte(tt.plan)); got != tt.want {
				t.Errorf("ExtractSummary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractSummaryTruncates(t *testing.T) {
	long := strings.Repeat("x", summaryLimit+100)
	got := ExtractSummary([]byte(long))
	if len(got) != summaryLimit+3 {
		t.Errorf("len = %d, want %d", len(got), summaryLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated summary should end with ellipsis marker")
	}
}
