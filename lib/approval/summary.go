// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// summaryLimit caps the announced summary length.
const summaryLimit = 300

// summaryHeading is the markdown heading whose section is preferred as
// the announcement summary.
const summaryHeading = "summary"

// ExtractSummary pulls a short human-readable summary out of a
// markdown plan. Preference order: the first paragraph under a
// "Summary" heading (any level, case-insensitive), then the first
// paragraph anywhere, then the first non-empty line of the raw text.
// The result is truncated to a fixed limit.
func ExtractSummary(plan []byte) string {
	md := goldmark.New()
	reader := text.NewReader(plan)
	doc := md.Parser().Parse(reader)

	var underSummary bool
	var summaryText, firstParagraph string

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			title := string(nodeText(n, plan))
			underSummary = strings.EqualFold(strings.TrimSpace(title), summaryHeading)
		case *ast.Paragraph:
			body := strings.TrimSpace(string(nodeText(n, plan)))
			if body == "" {
				continue
			}
			if underSummary && summaryText == "" {
				summaryText = body
			}
			if firstParagraph == "" {
				firstParagraph = body
			}
		}
		if summaryText != "" {
			break
		}
	}

	summary := summaryText
	if summary == "" {
		summary = firstParagraph
	}
	if summary == "" {
		summary = firstLine(string(plan))
	}
	return truncate(summary, summaryLimit)
}

// nodeText collects the source text of every text node under n.
func nodeText(n ast.Node, source []byte) []byte {
	var out []byte
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			out = append(out, t.Segment.Value(source)...)
		}
		return ast.WalkContinue, nil
	})
	return out
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
