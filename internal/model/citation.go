// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// =============================================================================
// CITATION TYPE
// =============================================================================

// Citation is one source reference attached to an assistant answer.
// SourceName alone identifies a citation for deduplication.
type Citation struct {
	SourceName string `json:"sourceName"`
	ChunkIndex int    `json:"chunkIndex"`
	Snippet    string `json:"snippet"`

	// DocID is the backend document id, when the backend supplied one.
	DocID string `json:"docId,omitempty"`
}

// wireCitation accepts both the documented field names and the names the
// chat backend actually emits (filename, chunk_index, doc_id).
type wireCitation struct {
	SourceName  *string         `json:"sourceName"`
	Filename    *string         `json:"filename"`
	ChunkIndex  json.RawMessage `json:"chunkIndex"`
	ChunkIndex2 json.RawMessage `json:"chunk_index"`
	Snippet     string          `json:"snippet"`
	DocID       json.RawMessage `json:"docId"`
	DocID2      json.RawMessage `json:"doc_id"`
}

// UnmarshalJSON decodes a citation from either naming convention.
// Numeric fields sent as strings are tolerated; unparseable ones decode as zero.
func (c *Citation) UnmarshalJSON(data []byte) error {
	var w wireCitation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*c = Citation{Snippet: w.Snippet}
	switch {
	case w.SourceName != nil:
		c.SourceName = *w.SourceName
	case w.Filename != nil:
		c.SourceName = *w.Filename
	}

	c.ChunkIndex = rawInt(firstRaw(w.ChunkIndex, w.ChunkIndex2))
	c.DocID = rawString(firstRaw(w.DocID, w.DocID2))
	return nil
}

func firstRaw(a, b json.RawMessage) json.RawMessage {
	if len(a) > 0 && !bytes.Equal(a, []byte("null")) {
		return a
	}
	return b
}

func rawInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// =============================================================================
// DEDUPLICATION
// =============================================================================

// Dedup returns the citations with repeated source names removed.
// The first citation seen for each SourceName is kept, in order of first
// appearance. The input slice is not modified.
func Dedup(citations []Citation) []Citation {
	if len(citations) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(citations))
	out := make([]Citation, 0, len(citations))
	for _, c := range citations {
		if _, dup := seen[c.SourceName]; dup {
			continue
		}
		seen[c.SourceName] = struct{}{}
		out = append(out, c)
	}
	return out
}
