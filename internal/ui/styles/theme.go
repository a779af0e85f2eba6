// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the docchat TUI.
package styles

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	DocStrip    lipgloss.Style
	DocName     lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	TurnText       lipgloss.Style
	Cursor         lipgloss.Style
	Cancelled      lipgloss.Style
	Failed         lipgloss.Style
	EmptyHint      lipgloss.Style

	// ==========================================================================
	// CITATIONS
	// ==========================================================================

	SourcesLabel lipgloss.Style
	Chip         lipgloss.Style
	ChipSelected lipgloss.Style
	Preview      lipgloss.Style
	PreviewTitle lipgloss.Style
	Snippet      lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputPrompt lipgloss.Style
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
}

// NewTheme creates a theme for mode "dark", "light" or "auto".
// Unknown modes behave like "auto".
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	// AdaptiveColor consults lipgloss's renderer, so force the choice there.
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.DocStrip = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.DocName = lipgloss.NewStyle().
		Foreground(Cyan)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.TurnText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.Cursor = lipgloss.NewStyle().
		Foreground(Purple).
		Blink(true)
	t.Cancelled = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true).
		PaddingLeft(2)
	t.Failed = lipgloss.NewStyle().
		Foreground(Rose).
		PaddingLeft(2)
	t.EmptyHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Citations
	t.SourcesLabel = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(2)
	t.Chip = lipgloss.NewStyle().
		Foreground(ChipFg).
		Background(ChipBg).
		Padding(0, 1).
		MarginRight(1)
	t.ChipSelected = t.Chip.
		Foreground(TextInverse).
		Background(ChipSelectedBg).
		Bold(true)
	t.Preview = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1).
		MarginLeft(2)
	t.PreviewTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.Snippet = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Input and status
	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary).
		Background(SurfaceDim)
	t.Error = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GlamourStyle names the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// Spinner is the ASCII spinner shown while an answer streams.
func (t *Theme) Spinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Spinner{
			Frames: []string{"|", "/", "-", "\\"},
			FPS:    spinner.Line.FPS,
		}),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(Purple)),
	)
}
