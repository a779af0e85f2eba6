// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup_SameSourceDifferentChunk(t *testing.T) {
	in := []Citation{
		{SourceName: "a.pdf", ChunkIndex: 0, Snippet: "first"},
		{SourceName: "a.pdf", ChunkIndex: 4, Snippet: "second"},
	}

	out := Dedup(in)
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Snippet)
	assert.Len(t, in, 2, "input must not be modified")
}

func TestDedup_StableFirstAppearance(t *testing.T) {
	in := []Citation{
		{SourceName: "b.pdf"},
		{SourceName: "a.pdf"},
		{SourceName: "b.pdf", ChunkIndex: 2},
		{SourceName: "c.docx"},
		{SourceName: "a.pdf", ChunkIndex: 9},
	}

	out := Dedup(in)
	names := make([]string, len(out))
	for i, c := range out {
		names[i] = c.SourceName
	}
	assert.Equal(t, []string{"b.pdf", "a.pdf", "c.docx"}, names)
}

func TestDedup_Idempotent(t *testing.T) {
	in := []Citation{
		{SourceName: "x"}, {SourceName: "y"}, {SourceName: "x", ChunkIndex: 1}, {SourceName: ""}, {SourceName: ""},
	}
	once := Dedup(in)
	assert.Equal(t, once, Dedup(once))
}

func TestDedup_Empty(t *testing.T) {
	assert.Nil(t, Dedup(nil))
	assert.Nil(t, Dedup([]Citation{}))
}

func TestCitation_UnmarshalNamingStyles(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Citation
	}{
		{
			name: "camel case",
			in:   `{"sourceName":"a.pdf","chunkIndex":2,"snippet":"x"}`,
			want: Citation{SourceName: "a.pdf", ChunkIndex: 2, Snippet: "x"},
		},
		{
			name: "backend names",
			in:   `{"filename":"b.pdf","chunk_index":7,"snippet":"y","doc_id":"65f0c"}`,
			want: Citation{SourceName: "b.pdf", ChunkIndex: 7, Snippet: "y", DocID: "65f0c"},
		},
		{
			name: "string chunk index",
			in:   `{"filename":"c.pdf","chunk_index":"3"}`,
			want: Citation{SourceName: "c.pdf", ChunkIndex: 3},
		},
		{
			name: "numeric doc id",
			in:   `{"sourceName":"d.pdf","docId":42}`,
			want: Citation{SourceName: "d.pdf", DocID: "42"},
		},
		{
			name: "sourceName preferred",
			in:   `{"sourceName":"e.pdf","filename":"other.pdf"}`,
			want: Citation{SourceName: "e.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Citation
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCitation_UnmarshalRejectsNonObject(t *testing.T) {
	var c Citation
	assert.Error(t, json.Unmarshal([]byte(`"a.pdf"`), &c))
}
