// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file holds the commands that keep the view in step with the stream:
// one waits for coordinator change signals, the other paces the typewriter
// reveal independently of network timing.
package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// documentsTimeout bounds the document strip refresh.
const documentsTimeout = 10 * time.Second

// waitForChange blocks until the coordinator signals a transcript change.
// The model re-arms it after every TranscriptChangedMsg, so at most one is
// outstanding.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return TranscriptChangedMsg{}
	}
}

// revealTickCmd schedules the next typewriter step.
func revealTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return RevealTickMsg{Time: t}
	})
}

// fetchDocumentsCmd lists the user's documents for the header strip.
func fetchDocumentsCmd(lister DocumentLister) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), documentsTimeout)
		defer cancel()
		docs, err := lister.ListDocuments(ctx)
		return DocumentsMsg{Docs: docs, Err: err}
	}
}
