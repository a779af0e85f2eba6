// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat transcript to Markdown, JSON or HTML.
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter, one section per turn, numbered sources
//   - JSON: every turn with its raw citations and deduplicated sources
//   - HTML: a standalone page with embedded light or dark styling
//
// # Usage
//
//	err := export.ToFile("lease-questions.html", coord.Snapshot(),
//	    export.Meta{Server: baseURL}, export.DefaultOptions())
//
// The format follows the file extension; anything unrecognised is Markdown.
// Files are written atomically.
package export
