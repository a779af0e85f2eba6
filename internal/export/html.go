// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page with embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a transcript to HTML. All text is escaped; answers keep
// their line breaks.
func (e *HTMLExporter) Export(t model.Transcript, meta Meta) ([]byte, error) {
	turns, meta, err := prepare(t, meta)
	if err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(meta.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"docchat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", turns[0].CreatedAt.Format(time.RFC3339))
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(turns, meta))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, turn := range turns {
		sb.WriteString(e.renderTurn(turn))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>docchat</strong> on %s</p>\n", formatTimestamp(meta.Exported))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(turns []model.Turn, meta Meta) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(meta.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	if meta.Server != "" {
		fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Server:</strong> %s</span>\n", html.EscapeString(meta.Server))
	}
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Started:</strong> %s</span>\n", formatTimestamp(turns[0].CreatedAt))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Turns:</strong> %d</span>\n", len(turns))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderTurn(turn model.Turn) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "            <div class=\"message %s-message\">\n", turn.Speaker)
	fmt.Fprintf(&sb, "                <div class=\"message-header\"><span class=\"role-label\">%s</span></div>\n", html.EscapeString(roleLabel(turn.Speaker)))
	fmt.Fprintf(&sb, "                <div class=\"message-content\">%s</div>\n", html.EscapeString(strings.TrimSpace(turn.Text)))

	if note := outcome(turn); note != "" && turn.Speaker == model.SpeakerAssistant {
		fmt.Fprintf(&sb, "                <p class=\"outcome %s\">%s</p>\n", turn.State, html.EscapeString(note))
	}

	if cits := turn.DisplayCitations(); len(cits) > 0 {
		sb.WriteString("                <div class=\"sources\">\n")
		sb.WriteString("                    <span class=\"sources-label\">Sources</span>\n")
		sb.WriteString("                    <ol>\n")
		for _, c := range cits {
			fmt.Fprintf(&sb, "                        <li><strong>%s</strong> <span class=\"chunk\">chunk %d</span>",
				html.EscapeString(c.SourceName), c.ChunkIndex)
			if e.options.IncludeSnippets && strings.TrimSpace(c.Snippet) != "" {
				fmt.Fprintf(&sb, "<blockquote>%s</blockquote>", html.EscapeString(util.CollapseSpace(c.Snippet)))
			}
			sb.WriteString("</li>\n")
		}
		sb.WriteString("                    </ol>\n")
		sb.WriteString("                </div>\n")
	}

	sb.WriteString("            </div>\n")
	return sb.String()
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const htmlCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
        }

        /* Dark theme (default) */
        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-bg: #1f2335;
            --assistant-bg: #24283b;
            --accent-blue: #7aa2f7;
            --accent-purple: #bb9af7;
            --accent-red: #f7768e;
        }

        /* Light theme */
        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-bg: #f6f8fa;
            --assistant-bg: #ffffff;
            --accent-blue: #0366d6;
            --accent-purple: #6f42c1;
            --accent-red: #d73a49;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            background: var(--bg-primary);
            color: var(--text-primary);
        }

        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        .header { border-bottom: 1px solid var(--border-color); padding-bottom: 1rem; margin-bottom: 1.5rem; }
        .header h1 { font-size: 1.5rem; margin-bottom: 0.5rem; }
        .metadata { color: var(--text-muted); font-size: 0.875rem; display: flex; gap: 1.5rem; flex-wrap: wrap; }

        .message { border: 1px solid var(--border-color); border-radius: 8px; padding: 1rem; margin-bottom: 1rem; }
        .user-message { background: var(--user-bg); }
        .assistant-message { background: var(--assistant-bg); }
        .role-label { font-weight: 600; color: var(--accent-blue); }
        .assistant-message .role-label { color: var(--accent-purple); }
        .message-content { white-space: pre-wrap; margin-top: 0.5rem; }

        .outcome { margin-top: 0.5rem; font-style: italic; color: var(--text-muted); }
        .outcome.failed { color: var(--accent-red); }

        .sources { margin-top: 0.75rem; padding-top: 0.5rem; border-top: 1px dashed var(--border-color); font-size: 0.9rem; }
        .sources-label { font-weight: 600; color: var(--text-muted); }
        .sources ol { margin-left: 1.5rem; }
        .chunk { color: var(--text-muted); font-size: 0.8rem; }
        .sources blockquote { color: var(--text-muted); border-left: 3px solid var(--border-color); padding-left: 0.5rem; margin: 0.25rem 0; }

        .footer { color: var(--text-muted); font-size: 0.8rem; text-align: center; margin-top: 2rem; }
    </style>
`
