// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for CLI (non-TUI) output.
//
// Colors are disabled for piped output and when NO_COLOR is set.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	// ValueStyle is used for field values
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	// DimStyle is used for snippets and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// SourceStyle is used for citation source names
	SourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141"))

	// PromptStyle is the REPL prompt
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// separator returns a horizontal rule.
func separator(width int) string {
	return DimStyle.Render(strings.Repeat("-", width))
}

// field renders an aligned "label value" line.
func field(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}
