// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes the chat backend's NDJSON response body.
//
// A chat answer arrives as an unbounded sequence of newline-delimited JSON
// records, each either a text fragment or a citation batch:
//
//	{"type":"chunk","data":"Renewal is "}
//	{"type":"citations","data":{"filename":"lease.pdf","chunk_index":3,"snippet":"..."}}
//
// # Key Types
//
//   - FrameDecoder: Reassembles records across arbitrary read boundaries
//   - Event: A classified record (KindChunk or KindCitations)
//   - Controller: Starts sessions against an Opener (the backend client)
//   - Session: One in-flight exchange with synchronous cancellation
//
// # Usage
//
//	ctrl := stream.NewController(client, stream.DefaultConfig(), log)
//	sess := ctrl.Start(ctx, "What is the notice period?", stream.Handlers{
//	    OnText:      func(s string) { fmt.Print(s) },
//	    OnCitations: func(c []model.Citation) { cites = append(cites, c...) },
//	    OnDone:      func(err error) { ... },
//	})
//	...
//	sess.Cancel() // no handler runs after this returns
//
// Malformed or unrecognized records are logged and skipped; they never end
// a session. Only transport failures reach OnDone as errors.
package stream
