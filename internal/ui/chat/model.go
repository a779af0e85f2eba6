// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/exchange"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/ui/pacer"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// EmptyHint is shown before the first question.
const EmptyHint = "Ask me about any of your uploaded documents"

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Asker is the part of the exchange coordinator the view drives.
type Asker interface {
	Ask(question string) *exchange.Exchange
	Cancel() bool
	Busy() bool
	Snapshot() model.Transcript
	Changes() <-chan struct{}
}

// DocumentLister lists the signed-in user's documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]backend.Document, error)
}

// Options configures New.
type Options struct {
	Coordinator Asker
	// Documents is optional; without it the document strip is hidden.
	Documents DocumentLister
	Config    *config.Config
	Theme     *styles.Theme
	Log       zerolog.Logger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	coord Asker
	docs  DocumentLister
	log   zerolog.Logger

	// Styling
	theme    *styles.Theme
	markdown *markdownRenderer

	// Dimensions
	width  int
	height int
	ready  bool

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// Transcript state, refreshed from coordinator snapshots
	transcript model.Transcript
	pacer      *pacer.Pacer
	ticking    bool

	// Citation selection: the assistant turn whose chips are focused, and
	// which chip. selTurn < 0 means nothing is selected.
	selTurn int
	selChip int

	// Document strip
	documents    []backend.Document
	documentsErr error
	showDocs     bool

	// Settings
	renderMarkdown bool

	// Last config reload problem, shown in the status bar
	statusErr string
}

// New creates the chat model.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.Placeholder = EmptyHint
	ti.CharLimit = 8000
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return Model{
		coord:          opts.Coordinator,
		docs:           opts.Documents,
		log:            opts.Log.With().Str("component", "tui").Logger(),
		theme:          theme,
		markdown:       newMarkdownRenderer(theme.GlamourStyle()),
		viewport:       vp,
		input:          ti,
		spinner:        theme.Spinner(),
		keyMap:         DefaultKeyMap(),
		pacer:          pacer.New(cfg.UI.RevealInterval(), cfg.UI.RevealCharsPerTick),
		selTurn:        -1,
		showDocs:       cfg.UI.ShowDocuments && opts.Documents != nil,
		renderMarkdown: cfg.UI.RenderMarkdown,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts listening for transcript changes and loads the document strip.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		waitForChange(m.coord.Changes()),
	}
	if m.showDocs {
		cmds = append(cmds, fetchDocumentsCmd(m.docs))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TranscriptChangedMsg:
		return m.handleTranscriptChanged()

	case RevealTickMsg:
		return m.handleRevealTick()

	case DocumentsMsg:
		m.documents, m.documentsErr = msg.Docs, msg.Err
		if msg.Err != nil {
			m.log.Warn().Err(msg.Err).Msg("document list failed")
		}
		m.layout()
		return m, nil

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case spinner.TickMsg:
		if !m.coord.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height
	m.ready = true
	m.theme.SetSize(msg.Width, msg.Height)
	m.input.Width = max(10, msg.Width-4)
	m.markdown.SetWidth(m.contentWidth())
	m.layout()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.coord.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.coord.Cancel() {
			m.log.Debug().Msg("answer cancelled by user")
			return m, nil
		}
		if m.selTurn >= 0 {
			m.selTurn = -1
			m.layout()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.NextCitation):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keyMap.PrevCitation):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keyMap.SkipReveal):
		m.pacer.Skip()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keyMap.RefreshDocs):
		if m.docs == nil {
			return m, nil
		}
		return m, fetchDocumentsCmd(m.docs)

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit asks the typed question. A question asked while an answer is
// streaming supersedes it.
func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}
	m.input.Reset()
	m.selTurn = -1

	ex := m.coord.Ask(question)
	m.log.Info().Int("turn", ex.TurnIndex).Str("session_id", ex.SessionID()).Msg("question asked")

	m.transcript = m.coord.Snapshot()
	m.syncPacer()
	m.layout()
	tick := m.startTicking()
	return m, tea.Batch(m.spinner.Tick, tick)
}

func (m Model) handleTranscriptChanged() (tea.Model, tea.Cmd) {
	m.transcript = m.coord.Snapshot()
	m.syncPacer()
	m.refresh()
	tick := m.startTicking()
	return m, tea.Batch(waitForChange(m.coord.Changes()), tick)
}

func (m Model) handleRevealTick() (tea.Model, tea.Cmd) {
	m.pacer.Tick()
	m.refresh()
	if m.pacer.CatchingUp() || m.coord.Busy() {
		return m, revealTickCmd(m.pacer.Interval())
	}
	m.ticking = false
	return m, nil
}

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.statusErr = "config: " + msg.Err.Error()
		m.log.Warn().Err(msg.Err).Msg("config reload failed")
		m.layout()
		return m, nil
	}
	cfg := msg.Config
	m.statusErr = ""
	m.pacer.SetRate(cfg.UI.RevealInterval(), cfg.UI.RevealCharsPerTick)
	m.renderMarkdown = cfg.UI.RenderMarkdown
	m.showDocs = cfg.UI.ShowDocuments && m.docs != nil

	if !strings.EqualFold(cfg.UI.Theme, themeMode(m.theme)) {
		m.theme = styles.NewTheme(cfg.UI.Theme)
		m.theme.SetSize(m.width, m.height)
		m.input.PromptStyle = m.theme.InputPrompt
		m.spinner = m.theme.Spinner()
		m.markdown = newMarkdownRenderer(m.theme.GlamourStyle())
		m.markdown.SetWidth(m.contentWidth())
	}
	m.log.Info().Msg("config reloaded")
	m.layout()

	var cmd tea.Cmd
	if m.showDocs && m.documents == nil {
		cmd = fetchDocumentsCmd(m.docs)
	}
	return m, cmd
}

// themeMode reports the explicit mode a theme was built for.
func themeMode(t *styles.Theme) string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// startTicking arms the reveal tick unless one is already pending.
func (m *Model) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	if !m.pacer.CatchingUp() && !m.coord.Busy() {
		return nil
	}
	m.ticking = true
	return revealTickCmd(m.pacer.Interval())
}

// syncPacer points the pacer at the newest assistant turn.
func (m *Model) syncPacer() {
	last, ok := m.transcript.Last()
	if !ok || last.Speaker != model.SpeakerAssistant {
		return
	}
	m.pacer.SetTarget(last.ID, last.Text)
	if last.State == model.TurnCancelled || last.State == model.TurnFailed {
		m.pacer.Skip()
	}
}

// moveSelection cycles the focused citation chip through the newest
// assistant turn that has sources.
func (m *Model) moveSelection(delta int) {
	turn := m.citedTurn()
	if turn < 0 {
		m.selTurn = -1
		return
	}
	chips := len(m.transcript.Turn(turn).DisplayCitations())
	if m.selTurn != turn {
		m.selTurn = turn
		if delta > 0 {
			m.selChip = 0
		} else {
			m.selChip = chips - 1
		}
	} else {
		m.selChip = (m.selChip + delta + chips) % chips
	}
	m.layout()
}

// citedTurn returns the newest assistant turn with citations, or -1.
func (m *Model) citedTurn() int {
	for i := m.transcript.Len() - 1; i >= 0; i-- {
		t := m.transcript.Turn(i)
		if t.Speaker == model.SpeakerAssistant && len(t.Citations) > 0 {
			return i
		}
	}
	return -1
}

// selectedCitation returns the focused citation, if any.
func (m *Model) selectedCitation() (model.Citation, bool) {
	if m.selTurn < 0 || m.selTurn >= m.transcript.Len() {
		return model.Citation{}, false
	}
	chips := m.transcript.Turn(m.selTurn).DisplayCitations()
	if m.selChip < 0 || m.selChip >= len(chips) {
		return model.Citation{}, false
	}
	return chips[m.selChip], true
}

// Transcript returns the last snapshot the view rendered.
func (m Model) Transcript() model.Transcript {
	return m.transcript
}
