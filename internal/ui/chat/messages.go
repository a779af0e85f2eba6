// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types used by the chat interface.
// Messages are organized into the following categories:
//   - Transcript: change notifications from the exchange coordinator
//   - Reveal: typewriter ticks for the streaming answer
//   - Documents: the uploaded document strip
//   - Config: live configuration reloads
package chat

import (
	"time"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
)

// =============================================================================
// TRANSCRIPT MESSAGES
// =============================================================================

// TranscriptChangedMsg signals that the transcript changed. It may stand for
// several changes; the model always re-reads a fresh snapshot.
type TranscriptChangedMsg struct{}

// =============================================================================
// REVEAL MESSAGES
// =============================================================================

// RevealTickMsg advances the typewriter reveal by one step.
type RevealTickMsg struct {
	Time time.Time
}

// =============================================================================
// DOCUMENT MESSAGES
// =============================================================================

// DocumentsMsg carries the result of listing the user's documents.
type DocumentsMsg struct {
	Docs []backend.Document
	Err  error
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg is sent by the config watcher after the file changes.
// Err is set when the new file could not be loaded; the old settings stay.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}
