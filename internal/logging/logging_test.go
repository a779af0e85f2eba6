// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := New(Options{Level: zerolog.InfoLevel, Dir: dir, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Debug().Msg("hidden")
	l.Info().Str("session_id", "abc").Msg("stream started")
	require.NoError(t, l.Close())

	assert.Equal(t, filepath.Join(dir, FileName), l.Path())
	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "stream started", rec["message"])
	assert.Equal(t, "abc", rec["session_id"])
	assert.Equal(t, "info", rec["level"])
	assert.Contains(t, rec, "time")
}

func TestNew_ConsoleCopy(t *testing.T) {
	var console bytes.Buffer
	l, err := New(Options{Level: zerolog.DebugLevel, Dir: t.TempDir(), MaxSizeMB: 1, Console: &console})
	require.NoError(t, err)
	defer l.Close()

	l.Warn().Msg("cookie file unreadable")
	assert.Contains(t, console.String(), "cookie file unreadable")
	assert.Contains(t, console.String(), "WRN")
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want zerolog.Level
		err  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"WARNING", zerolog.WarnLevel, false},
		{" error ", zerolog.ErrorLevel, false},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info().Msg("dropped")
	assert.Equal(t, "", l.Path())
	assert.NoError(t, l.Close())
}
