// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes the chat backend's NDJSON response body.
package stream

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventKind tags a classified record.
type EventKind int

const (
	// KindChunk is a fragment of answer text.
	KindChunk EventKind = iota + 1
	// KindCitations is a batch of source references.
	KindCitations
)

// String returns the wire name of the kind.
func (k EventKind) String() string {
	switch k {
	case KindChunk:
		return "chunk"
	case KindCitations:
		return "citations"
	default:
		return "unknown"
	}
}

// Event is one classified stream record.
type Event struct {
	Kind      EventKind
	Text      string
	Citations []model.Citation
}

// Classification failures. None of them end a stream.
var (
	ErrMalformedRecord  = errors.New("malformed record")
	ErrUnknownType      = errors.New("unrecognized record type")
	ErrUnexpectedData   = errors.New("unexpected data shape")
	ErrUpstreamReported = errors.New("backend reported an error")
)

// record is the wire envelope of every line.
type record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classify parses one record. It returns ok=false when the record yields
// no event; err then explains why, for logging only. Blank records yield
// neither an event nor an error. Classify never panics.
func Classify(line string) (ev Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false, nil
	}

	var rec record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return Event{}, false, errors.Wrapf(ErrMalformedRecord, "%v", err)
	}

	switch rec.Type {
	case "chunk":
		var text string
		if err := json.Unmarshal(rec.Data, &text); err != nil || isNull(rec.Data) {
			return Event{}, false, errors.Wrap(ErrUnexpectedData, "chunk data is not a string")
		}
		return Event{Kind: KindChunk, Text: text}, true, nil

	case "citations":
		items, err := decodeCitations(rec.Data)
		if err != nil {
			return Event{}, false, err
		}
		return Event{Kind: KindCitations, Citations: items}, true, nil

	case "error":
		return Event{}, false, errors.Wrap(ErrUpstreamReported, upstreamMessage(rec.Data))

	default:
		return Event{}, false, errors.Wrapf(ErrUnknownType, "%q", rec.Type)
	}
}

// decodeCitations accepts a single citation object or an array of them.
func decodeCitations(data json.RawMessage) ([]model.Citation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.Wrap(ErrUnexpectedData, "citations data missing")
	}

	switch data[0] {
	case '[':
		var items []model.Citation
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, errors.Wrapf(ErrUnexpectedData, "citations array: %v", err)
		}
		if items == nil {
			items = []model.Citation{}
		}
		return items, nil
	case '{':
		var item model.Citation
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, errors.Wrapf(ErrUnexpectedData, "citation object: %v", err)
		}
		return []model.Citation{item}, nil
	default:
		return nil, errors.Wrap(ErrUnexpectedData, "citations data is neither object nor array")
	}
}

func upstreamMessage(data json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil && msg != "" {
		return msg
	}
	if s := strings.TrimSpace(string(data)); s != "" && s != "null" {
		return s
	}
	return "no detail"
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
