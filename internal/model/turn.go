// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SPEAKER TYPE
// =============================================================================

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// String returns the string representation of the speaker.
func (s Speaker) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the speaker.
func (s Speaker) DisplayName() string {
	switch s {
	case SpeakerUser:
		return "You"
	case SpeakerAssistant:
		return "Assistant"
	default:
		return string(s)
	}
}

// =============================================================================
// TURN STATE
// =============================================================================

// TurnState records whether an assistant turn is still receiving data.
type TurnState string

const (
	TurnStreaming TurnState = "streaming"
	TurnComplete  TurnState = "complete"
	TurnCancelled TurnState = "cancelled"
	TurnFailed    TurnState = "failed"
)

// IsFinal reports whether the turn has stopped mutating.
func (s TurnState) IsFinal() bool {
	return s != TurnStreaming
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one message in the transcript.
type Turn struct {
	ID        string     `json:"id"`
	Speaker   Speaker    `json:"speaker"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	State     TurnState  `json:"state"`
	Err       string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newUserTurn(text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Speaker:   SpeakerUser,
		Text:      text,
		State:     TurnComplete,
		CreatedAt: time.Now(),
	}
}

func newAssistantTurn() Turn {
	return Turn{
		ID:        uuid.NewString(),
		Speaker:   SpeakerAssistant,
		State:     TurnStreaming,
		CreatedAt: time.Now(),
	}
}

// IsStreaming reports whether an assistant turn is still being populated.
func (t Turn) IsStreaming() bool {
	return t.Speaker == SpeakerAssistant && t.State == TurnStreaming
}

// DisplayCitations returns the deduplicated citations for rendering.
func (t Turn) DisplayCitations() []Citation {
	return Dedup(t.Citations)
}

// clone returns a copy that shares no mutable state with t.
func (t Turn) clone() Turn {
	if t.Citations != nil {
		t.Citations = append([]Citation(nil), t.Citations...)
	}
	return t
}
