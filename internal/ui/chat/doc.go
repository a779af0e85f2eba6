// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view for the docchat TUI.

The Model never reads the network. It drives an exchange coordinator
(Ask, Cancel) and re-renders from coordinator snapshots whenever the
coordinator signals a change. The newest answer is revealed by a
typewriter pacer on its own tick, so presentation speed never depends on
how the backend chunks its stream.

# Files

  - model.go: Model, key handling, pacer and selection state
  - view.go: header and document strip, transcript, citation chips and
    preview, status bar
  - markdown.go: glamour rendering of finished answers
  - streaming.go: change-wait and reveal tick commands
  - keys.go: key bindings
  - messages.go: Bubble Tea message types

# Keys

	Enter      ask (supersedes a streaming answer)
	Esc        cancel the streaming answer, or clear the source selection
	Tab/S-Tab  focus the sources of the newest cited answer
	C-o        reveal the whole answer now
	C-r        refresh the document strip
	PgUp/PgDn  scroll
	C-c        quit
*/
package chat
