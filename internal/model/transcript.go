// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript.
package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// ACTIONS
// =============================================================================

// Action is a transcript state transition.
type Action interface {
	action()
}

// SubmitQuestion appends a user turn and an empty assistant turn.
type SubmitQuestion struct {
	Text string
}

// AppendText concatenates a text fragment onto an assistant turn.
type AppendText struct {
	TurnIndex int
	Text      string
}

// AppendCitations concatenates a citation batch onto an assistant turn.
// The batch is stored as received; deduplication happens at render time.
type AppendCitations struct {
	TurnIndex int
	Items     []Citation
}

// Finalize marks an assistant turn as no longer streaming.
type Finalize struct {
	TurnIndex int
	State     TurnState
	Err       error
}

func (SubmitQuestion) action()  {}
func (AppendText) action()      {}
func (AppendCitations) action() {}
func (Finalize) action()        {}

// ContractViolation is the panic value raised when an action addresses a
// turn that cannot legally receive it. It only happens if a stale exchange
// keeps writing after it should have been cancelled.
type ContractViolation struct {
	Action    string
	TurnIndex int
	Len       int
	Reason    string
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("transcript contract violation: %s on turn %d (len %d): %s",
		v.Action, v.TurnIndex, v.Len, v.Reason)
}

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered conversation. Turns are only ever appended;
// the last assistant turn mutates while its exchange is active.
//
// A Transcript is not safe for concurrent use. Callers serialise access.
type Transcript struct {
	turns []Turn
}

// Apply performs one state transition. SubmitQuestion returns the index of
// the new assistant turn; every other action returns the index it touched.
func (t *Transcript) Apply(a Action) int {
	switch a := a.(type) {
	case SubmitQuestion:
		return t.Submit(a.Text)
	case AppendText:
		t.AppendText(a.TurnIndex, a.Text)
		return a.TurnIndex
	case AppendCitations:
		t.AppendCitations(a.TurnIndex, a.Items)
		return a.TurnIndex
	case Finalize:
		t.Finalize(a.TurnIndex, a.State, a.Err)
		return a.TurnIndex
	default:
		panic(&ContractViolation{Action: fmt.Sprintf("%T", a), TurnIndex: -1, Len: len(t.turns), Reason: "unknown action"})
	}
}

// Submit appends a user turn and an empty assistant turn and returns the
// assistant turn's index.
func (t *Transcript) Submit(question string) int {
	t.turns = append(t.turns, newUserTurn(question), newAssistantTurn())
	return len(t.turns) - 1
}

// AppendText concatenates text onto the assistant turn at index.
func (t *Transcript) AppendText(index int, text string) {
	turn := t.assistant("AppendText", index)
	turn.Text += text
}

// AppendCitations concatenates items onto the assistant turn at index.
func (t *Transcript) AppendCitations(index int, items []Citation) {
	turn := t.assistant("AppendCitations", index)
	turn.Citations = append(turn.Citations, items...)
}

// Finalize stops the assistant turn at index from streaming. Finalizing an
// already final turn is a no-op, so cancel and completion may race safely.
func (t *Transcript) Finalize(index int, state TurnState, err error) {
	turn := t.assistant("Finalize", index)
	if turn.State.IsFinal() {
		return
	}
	if !state.IsFinal() {
		state = TurnComplete
	}
	turn.State = state
	if err != nil {
		turn.Err = err.Error()
	}
}

// assistant returns a pointer to the assistant turn at index, panicking with
// a ContractViolation when the index is out of range or names a user turn.
func (t *Transcript) assistant(op string, index int) *Turn {
	if index < 0 || index >= len(t.turns) {
		panic(&ContractViolation{Action: op, TurnIndex: index, Len: len(t.turns), Reason: "index out of range"})
	}
	turn := &t.turns[index]
	if turn.Speaker != SpeakerAssistant {
		panic(&ContractViolation{Action: op, TurnIndex: index, Len: len(t.turns), Reason: "not an assistant turn"})
	}
	return turn
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// IsEmpty returns true if there are no turns.
func (t *Transcript) IsEmpty() bool {
	return len(t.turns) == 0
}

// Turn returns a copy of the turn at index.
func (t *Transcript) Turn(index int) Turn {
	if index < 0 || index >= len(t.turns) {
		panic(&ContractViolation{Action: "Turn", TurnIndex: index, Len: len(t.turns), Reason: "index out of range"})
	}
	return t.turns[index].clone()
}

// Last returns a copy of the last turn, or false if the transcript is empty.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1].clone(), true
}

// Turns returns copies of all turns.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.clone()
	}
	return out
}

// Snapshot returns a deep copy that can be read while t keeps changing.
func (t *Transcript) Snapshot() Transcript {
	return Transcript{turns: t.Turns()}
}

// Markdown renders the transcript as markdown, citations deduplicated.
func (t *Transcript) Markdown() string {
	var sb strings.Builder
	for _, turn := range t.turns {
		fmt.Fprintf(&sb, "**%s:**\n\n%s\n\n", turn.Speaker.DisplayName(), turn.Text)
		if cits := turn.DisplayCitations(); len(cits) > 0 {
			sb.WriteString("Sources:\n")
			for _, c := range cits {
				fmt.Fprintf(&sb, "- %s\n", c.SourceName)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
