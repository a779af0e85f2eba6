// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the docchat zerolog logger.
//
// Logs go to a size-rotated JSON file (lumberjack) so they never draw over
// the TUI. A human-readable console copy on stderr is opt-in.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the active log file inside the log directory.
const FileName = "docchat.log"

// Options configures New.
type Options struct {
	Level      zerolog.Level
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console, when non-nil, also receives pretty-printed records.
	Console io.Writer
}

// Logger bundles the configured logger with the rotating file behind it.
type Logger struct {
	zerolog.Logger

	rotator *lumberjack.Logger
}

// New creates the log directory and returns a logger writing to it.
func New(opts Options) (*Logger, error) {
	if opts.Dir == "" {
		return nil, errors.New("log directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, FileName),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	var out io.Writer = rotator
	if opts.Console != nil {
		console := zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen}
		out = zerolog.MultiLevelWriter(rotator, console)
	}

	l := zerolog.New(out).Level(opts.Level).With().Timestamp().Logger()
	return &Logger{Logger: l, rotator: rotator}, nil
}

// Path returns the active log file.
func (l *Logger) Path() string {
	if l.rotator == nil {
		return ""
	}
	return l.rotator.Filename
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// ParseLevel maps a level name to zerolog, accepting "warning" for warn.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel, errors.Wrapf(err, "invalid log level %q", s)
	}
	if lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, nil
	}
	return lvl, nil
}
