// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript.
//
// This package defines the domain types that the stream consumer folds
// events into and that the UI renders.
//
// # Key Types
//
//   - Transcript: Append-only sequence of turns, mutated through actions
//   - Turn: One user question or assistant answer with its citations
//   - Citation: A source reference (document name, chunk index, snippet)
//   - Action: SubmitQuestion, AppendText, AppendCitations, Finalize
//
// # Usage
//
// Submit a question and fold streamed events into the answer:
//
//	var t model.Transcript
//	idx := t.Submit("What does the contract say about renewals?")
//	t.Apply(model.AppendText{TurnIndex: idx, Text: "Renewal is "})
//	t.Apply(model.AppendCitations{TurnIndex: idx, Items: cits})
//
// Citations are stored raw. Deduplicate them only for display:
//
//	for _, c := range model.Dedup(t.Turn(idx).Citations) {
//	    fmt.Println(c.SourceName)
//	}
package model
