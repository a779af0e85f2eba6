// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown. Answers are written as-is since
// they are already markdown; sources are deduplicated.
func (e *MarkdownExporter) Export(t model.Transcript, meta Meta) ([]byte, error) {
	turns, meta, err := prepare(t, meta)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(meta.Title))
		if meta.Server != "" {
			fmt.Fprintf(&sb, "server: %s\n", escapeYAML(meta.Server))
		}
		fmt.Fprintf(&sb, "date: %s\n", turns[0].CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "turns: %d\n", len(turns))
		fmt.Fprintf(&sb, "exported: %s\n", meta.Exported.Format(time.RFC3339))
		sb.WriteString("generator: docchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(meta.Title))

	for i, turn := range turns {
		fmt.Fprintf(&sb, "### %s\n\n", roleLabel(turn.Speaker))
		sb.WriteString(strings.TrimSpace(turn.Text))
		sb.WriteString("\n\n")

		if note := outcome(turn); note != "" && turn.Speaker == model.SpeakerAssistant {
			fmt.Fprintf(&sb, "*%s*\n\n", note)
		}
		if sources := e.formatSources(turn); sources != "" {
			sb.WriteString(sources)
			sb.WriteString("\n")
		}

		// Add separator between turns (except last)
		if i < len(turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "\n*Exported from docchat on %s*\n", formatTimestamp(meta.Exported))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// formatSources lists a turn's deduplicated citations.
func (e *MarkdownExporter) formatSources(turn model.Turn) string {
	cits := turn.DisplayCitations()
	if len(cits) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("**Sources**\n\n")
	for i, c := range cits {
		fmt.Fprintf(&sb, "%d. **%s** (chunk %d)\n", i+1, escapeMarkdown(c.SourceName), c.ChunkIndex)
		if e.options.IncludeSnippets && strings.TrimSpace(c.Snippet) != "" {
			fmt.Fprintf(&sb, "   > %s\n", util.CollapseSpace(c.Snippet))
		}
	}
	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes values containing YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
