// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts to JSON format.
// Every turn keeps its raw citations; Sources holds the deduplicated list.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Title    string     `json:"title"`
	Server   string     `json:"server,omitempty"`
	Exported time.Time  `json:"exported"`
	Turns    []jsonTurn `json:"turns"`
}

type jsonTurn struct {
	model.Turn
	Sources []model.Citation `json:"sources,omitempty"`
}

// Export converts a transcript to indented JSON.
func (e *JSONExporter) Export(t model.Transcript, meta Meta) ([]byte, error) {
	turns, meta, err := prepare(t, meta)
	if err != nil {
		return nil, err
	}

	doc := jsonDocument{
		Title:    meta.Title,
		Server:   meta.Server,
		Exported: meta.Exported,
		Turns:    make([]jsonTurn, 0, len(turns)),
	}
	for _, turn := range turns {
		doc.Turns = append(doc.Turns, jsonTurn{Turn: turn, Sources: turn.DisplayCitations()})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
