// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across docchat.
package util

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// UNICODE: all truncation here is rune-aware so multi-byte characters are
// never split, and width-based helpers count terminal cells.

const ellipsis = "..."

// TruncateRunes truncates a string to a maximum number of runes.
// If the string is truncated, "..." is appended within the limit.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if maxRunes <= len(ellipsis) {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-len(ellipsis)]) + ellipsis
}

// TruncateRunesNoEllipsis truncates a string to a maximum number of runes.
func TruncateRunesNoEllipsis(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}

// TruncateWidth truncates a string to a maximum display width in terminal
// cells. Wide (CJK) characters take two cells.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(ellipsis) {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, ellipsis)
}

// StringWidth returns the display width of a string in terminal cells.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// PadRight pads s with spaces to width cells. Longer strings are truncated.
func PadRight(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillRight(s, width)
}

// SafeSubstring returns a substring using rune indices (not byte indices).
func SafeSubstring(s string, start, end int) string {
	runes := []rune(s)
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		return ""
	}
	if end < 0 || end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

// RuneLen returns the number of runes in a string.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// CollapseSpace folds every run of whitespace, newlines included, into a
// single space and trims the ends. Snippets from extracted PDF text are
// full of hard line breaks.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Preview returns a one-line preview of s at most maxWidth cells wide.
func Preview(s string, maxWidth int) string {
	return TruncateWidth(CollapseSpace(s), maxWidth)
}
