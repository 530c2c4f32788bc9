// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt renders search results into context text and composes
// the augmented prompt sent to the generation backend.
package prompt

import (
	"strings"

	"github.com/leseb/ragproxy/pkg/websearch"
)

// DefaultSystem is the preamble placed ahead of the context section.
const DefaultSystem = "You are a helpful World of Warcraft assistant.\nUse the following context to answer the question."

// RenderContext renders one line per result as
// "<title> - <snippet> (Source: <url>)". The snippet part is omitted when
// empty. No results render as the empty string.
func RenderContext(results []websearch.SearchResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		b.WriteString(r.Title)
		if r.Snippet != "" {
			b.WriteString(" - ")
			b.WriteString(r.Snippet)
		}
		b.WriteString(" (Source: ")
		b.WriteString(r.URL)
		b.WriteString(")")
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// Composer builds augmented prompts.
type Composer struct {
	// System is the preamble. Empty uses DefaultSystem.
	System string
}

// Build returns the augmented prompt for question. The Context section is
// always present, even when context is empty.
func (c Composer) Build(context, question string) string {
	system := c.System
	if system == "" {
		system = DefaultSystem
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(system, "\n"))
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
