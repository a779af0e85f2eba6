// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the docchat TUI.

All colors use Lip Gloss AdaptiveColor. NewTheme decides light or dark once,
from the ui.theme setting or termenv's background probe, and pins lipgloss to
that choice so every AdaptiveColor agrees.

# Colors (colors.go)

  - Cyan - user turns and the document strip
  - Purple - assistant turns and the selected citation
  - Emerald, Amber, Rose - complete, cancelled and failed answers

Status helpers pair every color with an ASCII indicator ([OK], [X], [!], [i])
for colorblind users and monochrome terminals.

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	chip := theme.Chip.Render("lease.pdf")
	md, _ := glamour.NewTermRenderer(glamour.WithStandardStyle(theme.GlamourStyle()))
*/
package styles
