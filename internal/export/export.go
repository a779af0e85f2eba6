// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat transcript to Markdown, JSON or HTML.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript is empty")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for transcript exporters.
type Exporter interface {
	// Export converts a transcript to the target format and returns the content.
	Export(t model.Transcript, meta Meta) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Meta describes the session a transcript came from.
type Meta struct {
	// Title defaults to the first question.
	Title string
	// Server is the backend base URL.
	Server   string
	Exported time.Time
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata includes a metadata header (server, dates, turn count).
	IncludeMetadata bool

	// IncludeSnippets adds each source's snippet under it.
	IncludeSnippets bool

	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		IncludeSnippets: true,
		Theme:           "dark",
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ForPath picks an exporter from the file extension of path. Unknown
// extensions get Markdown.
func ForPath(path string, opts *Options) Exporter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONExporter(opts)
	case ".html", ".htm":
		return NewHTMLExporter(opts)
	default:
		return NewMarkdownExporter(opts)
	}
}

// ToFile exports t to path in the format its extension names.
func ToFile(path string, t model.Transcript, meta Meta, opts *Options) error {
	content, err := ForPath(path, opts).Export(t, meta)
	if err != nil {
		return errors.Wrap(err, "export failed")
	}
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return errors.Wrap(err, "write file")
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// prepare validates t and fills the meta defaults.
func prepare(t model.Transcript, meta Meta) ([]model.Turn, Meta, error) {
	turns := t.Turns()
	if len(turns) == 0 {
		return nil, meta, ErrEmptyTranscript
	}
	if meta.Title == "" {
		meta.Title = util.TruncateRunes(util.CollapseSpace(turns[0].Text), 60)
	}
	if meta.Exported.IsZero() {
		meta.Exported = time.Now()
	}
	return turns, meta, nil
}

// roleLabel returns the heading for a turn's speaker.
func roleLabel(s model.Speaker) string {
	return "[" + s.DisplayName() + "]"
}

// outcome describes how an unfinished answer ended, or "" for complete ones.
func outcome(turn model.Turn) string {
	switch turn.State {
	case model.TurnCancelled:
		return "Answer cancelled."
	case model.TurnFailed:
		if turn.Err != "" {
			return fmt.Sprintf("Answer failed: %s", turn.Err)
		}
		return "Answer failed."
	case model.TurnStreaming:
		return "Answer still streaming when exported."
	}
	return ""
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("January 2, 2006 at 3:04 PM")
}
