// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file renders the chat interface: header with the document strip,
// the transcript viewport, the citation preview, input and status bar.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

const (
	maxChipWidth    = 32
	maxSnippetLines = 6
)

// View renders the chat interface.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	parts := []string{m.renderHeader(), m.viewport.View()}
	if preview := m.renderPreview(); preview != "" {
		parts = append(parts, preview)
	}
	parts = append(parts, m.input.View(), m.renderStatus())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// contentWidth is the wrap width for turn bodies.
func (m Model) contentWidth() int {
	return max(20, m.width-4)
}

// layout recomputes the viewport size, then re-renders its content.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	used := lipgloss.Height(m.renderHeader()) + 2 // input + status
	if preview := m.renderPreview(); preview != "" {
		used += lipgloss.Height(preview)
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(3, m.height-used)
	m.refresh()
}

// refresh re-renders the transcript into the viewport, following the
// bottom if the user had not scrolled away.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme
	brand := t.HeaderBrand.Render("docchat")
	lines := []string{t.Header.Width(m.width).Render(brand)}

	if m.showDocs {
		lines = append(lines, t.DocStrip.Render(util.TruncateWidth(m.documentStrip(), max(10, m.width))))
	}
	return strings.Join(lines, "\n")
}

// documentStrip lists uploaded documents on one line.
func (m Model) documentStrip() string {
	switch {
	case m.documentsErr != nil:
		return "Documents unavailable: " + m.documentsErr.Error()
	case m.documents == nil:
		return "Loading documents..."
	case len(m.documents) == 0:
		return "No documents uploaded yet"
	}
	names := make([]string, len(m.documents))
	for i, d := range m.documents {
		names[i] = d.Filename
	}
	return fmt.Sprintf("Documents (%d): %s", len(names), strings.Join(names, ", "))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderTranscript() string {
	if m.transcript.IsEmpty() {
		hint := m.theme.EmptyHint.Render(EmptyHint)
		return lipgloss.Place(m.width, max(1, m.viewport.Height), lipgloss.Center, lipgloss.Center, hint)
	}

	var b strings.Builder
	for i, turn := range m.transcript.Turns() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if turn.Speaker == model.SpeakerUser {
			b.WriteString(m.renderUserTurn(turn))
		} else {
			b.WriteString(m.renderAssistantTurn(i, turn))
		}
	}
	return b.String()
}

func (m Model) renderUserTurn(turn model.Turn) string {
	t := m.theme
	return t.UserLabel.Render(turn.Speaker.DisplayName()) + "\n" +
		t.TurnText.Width(m.contentWidth()).Render(turn.Text)
}

func (m Model) renderAssistantTurn(index int, turn model.Turn) string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.AssistantLabel.Render(turn.Speaker.DisplayName()))
	b.WriteString("\n")
	b.WriteString(m.renderAnswerBody(turn))

	switch turn.State {
	case model.TurnCancelled:
		b.WriteString("\n")
		b.WriteString(t.Cancelled.Render("[!] Cancelled"))
	case model.TurnFailed:
		b.WriteString("\n")
		msg := "Something went wrong"
		if turn.Err != "" {
			msg = turn.Err
		}
		b.WriteString(t.Failed.Render("[X] " + msg))
	}

	if chips := m.renderChips(index, turn); chips != "" {
		b.WriteString("\n")
		b.WriteString(chips)
	}
	return b.String()
}

// renderAnswerBody shows the paced prefix while the newest answer is still
// being revealed, and the full (optionally markdown) text afterwards.
func (m Model) renderAnswerBody(turn model.Turn) string {
	t := m.theme
	width := m.contentWidth()

	revealing := turn.ID == m.pacer.Key() && (turn.IsStreaming() || m.pacer.CatchingUp())
	if revealing {
		shown := m.pacer.Displayed()
		if shown == "" && turn.IsStreaming() {
			return t.TurnText.Render(m.spinner.View() + " Thinking...")
		}
		return t.TurnText.Width(width).Render(shown + t.Cursor.Render("_"))
	}

	if turn.Text == "" {
		return ""
	}
	if m.renderMarkdown && turn.State == model.TurnComplete {
		return m.markdown.Render(turn.ID, turn.Text)
	}
	return t.TurnText.Width(width).Render(turn.Text)
}

// renderChips lays out one chip per distinct source, wrapping as needed.
func (m Model) renderChips(index int, turn model.Turn) string {
	sources := turn.DisplayCitations()
	if len(sources) == 0 {
		return ""
	}
	t := m.theme
	width := m.contentWidth()

	lines := []string{}
	line := t.SourcesLabel.Render("Sources:") + " "
	for i, c := range sources {
		style := t.Chip
		if index == m.selTurn && i == m.selChip {
			style = t.ChipSelected
		}
		chip := style.Render(util.TruncateWidth(c.SourceName, maxChipWidth))
		if lipgloss.Width(line)+lipgloss.Width(chip) > width && i > 0 {
			lines = append(lines, line)
			line = strings.Repeat(" ", lipgloss.Width(t.SourcesLabel.Render("Sources:"))+1)
		}
		line += chip
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

// =============================================================================
// CITATION PREVIEW
// =============================================================================

// renderPreview shows the focused citation's source and snippet.
func (m Model) renderPreview() string {
	c, ok := m.selectedCitation()
	if !ok {
		return ""
	}
	t := m.theme
	inner := max(10, m.width-8)

	title := t.PreviewTitle.Render(util.TruncateWidth(c.SourceName, inner))
	meta := t.Muted.Render(fmt.Sprintf("chunk %d", c.ChunkIndex))

	snippet := util.CollapseSpace(c.Snippet)
	if snippet == "" {
		snippet = "No snippet available."
	}
	snippet = util.TruncateWidth(snippet, inner*maxSnippetLines)
	body := t.Snippet.Width(inner).Render(snippet)

	return t.Preview.Width(inner + 2).Render(title + "  " + meta + "\n" + body)
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatus() string {
	t := m.theme

	var left string
	switch {
	case m.statusErr != "":
		left = t.Error.Render(m.statusErr)
	case m.coord.Busy():
		left = m.spinner.View() + " Answering... Esc to cancel"
	case m.pacer.CatchingUp():
		shown, total := m.pacer.Progress()
		left = fmt.Sprintf("Revealing %d/%d", shown, total)
	default:
		left = "Ready"
	}

	help := helpLine(m.keyMap.ShortHelp())
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help) - 2
	if gap < 1 {
		return t.StatusBar.Width(m.width).Render(util.TruncateWidth(left, max(1, m.width-2)))
	}
	return t.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + help)
}
