// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeChunked feeds data to a fresh decoder in pieces of size n.
func decodeChunked(data []byte, n int) []string {
	d := NewFrameDecoder()
	var out []string
	for len(data) > 0 {
		k := n
		if k > len(data) {
			k = len(data)
		}
		out = append(out, d.Feed(data[:k])...)
		data = data[k:]
	}
	if tail, ok := d.Flush(); ok {
		out = append(out, tail)
	}
	return out
}

// =============================================================================
// CHUNKING TESTS
// =============================================================================

func TestFrameDecoder_ChunkingInvariance(t *testing.T) {
	records := []string{
		`{"type":"chunk","data":"Hel"}`,
		`{"type":"chunk","data":"lo wörld 世界 🎉"}`,
		`{"type":"citations","data":{"sourceName":"ä.pdf","chunkIndex":0,"snippet":"x"}}`,
		`{"type":"chunk","data":"!"}`,
	}
	data := []byte(strings.Join(records, "\n") + "\n")

	for n := 1; n <= len(data); n++ {
		got := decodeChunked(data, n)
		require.Equal(t, records, got, "chunk size %d", n)
	}
}

func TestFrameDecoder_TrailingRecordEmittedOnce(t *testing.T) {
	d := NewFrameDecoder()
	got := d.Feed([]byte("first\nsec"))
	assert.Equal(t, []string{"first"}, got)
	assert.Equal(t, 3, d.Buffered())

	got = d.Feed([]byte("ond"))
	assert.Empty(t, got)

	tail, ok := d.Flush()
	require.True(t, ok)
	assert.Equal(t, "second", tail)

	_, ok = d.Flush()
	assert.False(t, ok)
	assert.Nil(t, d.Feed([]byte("more\n")), "a flushed decoder is inert")
}

func TestFrameDecoder_NoTrailingRecordAfterDelimiter(t *testing.T) {
	d := NewFrameDecoder()
	assert.Equal(t, []string{"a", "b"}, d.Feed([]byte("a\nb\n")))
	_, ok := d.Flush()
	assert.False(t, ok)
}

func TestFrameDecoder_SplitMultiByte(t *testing.T) {
	data := []byte("é€\n")
	d := NewFrameDecoder()

	// é is C3 A9, € is E2 82 AC
	assert.Empty(t, d.Feed(data[:1]))
	assert.Empty(t, d.Feed(data[1:3]))
	assert.Empty(t, d.Feed(data[3:4]))
	assert.Equal(t, []string{"é€"}, d.Feed(data[4:]))
}

func TestFrameDecoder_TruncatedCharacterAtEOF(t *testing.T) {
	d := NewFrameDecoder()
	assert.Empty(t, d.Feed([]byte{'o', 'k', 0xE2, 0x82}))
	tail, ok := d.Flush()
	require.True(t, ok)
	assert.Equal(t, "ok�", tail)
}

func TestFrameDecoder_InvalidBytesBecomeReplacement(t *testing.T) {
	d := NewFrameDecoder()
	got := d.Feed([]byte{'a', 0xFF, 'b', '\n'})
	assert.Equal(t, []string{"a�b"}, got)
}

func TestFrameDecoder_EmptyRecordsKept(t *testing.T) {
	d := NewFrameDecoder()
	assert.Equal(t, []string{"a", "", "b"}, d.Feed([]byte("a\n\nb\n")))
}

func TestFrameDecoder_SplitRecordClassifies(t *testing.T) {
	d := NewFrameDecoder()
	assert.Empty(t, d.Feed([]byte(`{"type":"ch`)))
	recs := d.Feed([]byte(`unk","data":"x"}` + "\n"))
	require.Len(t, recs, 1)

	ev, ok, err := Classify(recs[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindChunk, ev.Kind)
	assert.Equal(t, "x", ev.Text)
}

func TestFrameDecoder_LargeRecord(t *testing.T) {
	big := strings.Repeat("ü", 10000)
	data := []byte(big + "\n")

	got := decodeChunked(data, 777)
	require.Len(t, got, 1)
	assert.Equal(t, big, got[0])
}
