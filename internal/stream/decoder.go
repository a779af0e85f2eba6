// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes the chat backend's NDJSON response body.
package stream

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// FRAME DECODER
// =============================================================================

const decodeBufSize = 4096

// FrameDecoder splits a byte stream into line-delimited text records.
//
// Network reads may split or coalesce records arbitrarily, and may split a
// multi-byte character. FrameDecoder carries both the undecoded tail bytes
// and the incomplete last line across calls to Feed. Invalid UTF-8 decodes
// to U+FFFD.
//
// A FrameDecoder serves exactly one stream. After Flush it is inert.
type FrameDecoder struct {
	dec     transform.Transformer
	pending []byte // bytes of a character split across Feed calls
	carry   []byte // decoded text after the last line feed
	out     []byte
	flushed bool
}

// NewFrameDecoder creates a decoder for one response body.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{
		dec: unicode.UTF8.NewDecoder(),
		out: make([]byte, decodeBufSize),
	}
}

// Feed decodes p and returns every record completed by it, in order.
// Empty records between consecutive line feeds are returned too.
func (d *FrameDecoder) Feed(p []byte) []string {
	if d.flushed || len(p) == 0 {
		return nil
	}
	d.decode(p, false)

	var records []string
	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		records = append(records, string(d.carry[:i]))
		d.carry = d.carry[i+1:]
	}

	// Compact so carry does not pin every byte ever read.
	if len(d.carry) == 0 {
		d.carry = nil
	} else if cap(d.carry) > 2*len(d.carry)+decodeBufSize {
		d.carry = append([]byte(nil), d.carry...)
	}
	return records
}

// Flush ends the stream. A non-empty unterminated tail is returned as the
// final record. Flush returns false on every later call.
func (d *FrameDecoder) Flush() (string, bool) {
	if d.flushed {
		return "", false
	}
	d.decode(nil, true)
	d.flushed = true

	tail := d.carry
	d.carry = nil
	d.pending = nil
	if len(tail) == 0 {
		return "", false
	}
	return string(tail), true
}

// Buffered returns how many decoded bytes are waiting for a line feed.
func (d *FrameDecoder) Buffered() int {
	return len(d.carry)
}

func (d *FrameDecoder) decode(p []byte, atEOF bool) {
	src := p
	if len(d.pending) > 0 {
		src = append(append([]byte(nil), d.pending...), p...)
		d.pending = d.pending[:0]
	}

	for {
		nDst, nSrc, err := d.dec.Transform(d.out, src, atEOF)
		d.carry = append(d.carry, d.out[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.out = make([]byte, 2*len(d.out))
			}
		case transform.ErrShortSrc:
			d.pending = append(d.pending, src...)
			return
		default:
			// The UTF-8 decoder only reports short buffers; keep the raw
			// bytes rather than lose them.
			d.carry = append(d.carry, src...)
			return
		}
	}
}
