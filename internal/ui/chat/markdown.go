// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders finished answers with glamour. Output is cached
// per turn and dropped whenever the wrap width changes.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]renderedTurn
}

type renderedTurn struct {
	source string
	output string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{
		style: style,
		width: 80,
		cache: make(map[string]renderedTurn),
	}
}

// SetWidth changes the wrap width.
func (r *markdownRenderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.renderer = nil
	r.cache = make(map[string]renderedTurn)
}

// Render returns text rendered as markdown. key identifies the turn. On any
// glamour error the text is returned unchanged.
func (r *markdownRenderer) Render(key, text string) string {
	if cached, ok := r.cache[key]; ok && cached.source == text {
		return cached.output
	}

	if r.renderer == nil {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(r.width),
		)
		if err != nil {
			return text
		}
		r.renderer = tr
	}

	out, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")
	r.cache[key] = renderedTurn{source: text, output: out}
	return out
}
