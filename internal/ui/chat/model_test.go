// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/exchange"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/stream"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const leaseAnswer = `{"type":"chunk","data":"Hello"}
{"type":"chunk","data":" world"}
{"type":"citations","data":[{"filename":"a.pdf","chunk_index":0,"snippet":"rent is due\non the first"},{"filename":"a.pdf","chunk_index":3,"snippet":"late fees"}]}
`

// staticOpener answers every question with the same NDJSON body.
type staticOpener string

func (o staticOpener) OpenChat(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(o))), nil
}

// hangingOpener returns a body that never delivers.
type hangingOpener struct{}

func (hangingOpener) OpenChat(context.Context, string) (io.ReadCloser, error) {
	pr, _ := io.Pipe()
	return pr, nil
}

type fakeLister struct {
	docs []backend.Document
	err  error
}

func (f fakeLister) ListDocuments(context.Context) ([]backend.Document, error) {
	return f.docs, f.err
}

func newTestModel(t *testing.T, opener stream.Opener, docs DocumentLister) (Model, *exchange.Coordinator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ctrl := stream.NewController(opener, stream.DefaultConfig(), zerolog.Nop())
	coord := exchange.NewCoordinator(ctx, ctrl, zerolog.Nop())
	t.Cleanup(coord.Close)

	cfg := config.Default()
	cfg.UI.RenderMarkdown = false
	cfg.UI.RevealCharsPerTick = 3

	m := New(Options{
		Coordinator: coord,
		Documents:   docs,
		Config:      cfg,
		Theme:       styles.NewTheme("dark"),
		Log:         zerolog.Nop(),
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, coord
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm
}

func ask(t *testing.T, m Model, question string) Model {
	t.Helper()
	m.input.SetValue(question)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// settle waits for the exchange to end, then reveals the whole answer.
func settle(t *testing.T, m Model, coord *exchange.Coordinator) Model {
	t.Helper()
	require.Eventually(t, func() bool { return !coord.Busy() }, 5*time.Second, 5*time.Millisecond)
	m = update(t, m, TranscriptChangedMsg{})
	for i := 0; i < 1000 && m.pacer.CatchingUp(); i++ {
		m = update(t, m, RevealTickMsg{Time: time.Now()})
	}
	require.False(t, m.pacer.CatchingUp())
	return m
}

// =============================================================================
// TESTS
// =============================================================================

func TestView_EmptyStateHint(t *testing.T) {
	m, _ := newTestModel(t, staticOpener(""), nil)
	assert.Contains(t, m.View(), EmptyHint)
}

func TestView_BeforeResize(t *testing.T) {
	m := New(Options{Coordinator: exchange.NewCoordinator(context.Background(), nil, zerolog.Nop())})
	assert.Equal(t, "Loading...", m.View())
}

func TestInit_ReturnsCommands(t *testing.T) {
	m, _ := newTestModel(t, staticOpener(""), fakeLister{})
	assert.NotNil(t, m.Init())
}

func TestAsk_RendersRevealedAnswerAndSources(t *testing.T) {
	m, coord := newTestModel(t, staticOpener(leaseAnswer), nil)

	m = ask(t, m, "When is rent due?")
	assert.Equal(t, "", m.input.Value(), "input clears after asking")
	m = settle(t, m, coord)

	view := m.View()
	assert.Contains(t, view, "You")
	assert.Contains(t, view, "When is rent due?")
	assert.Contains(t, view, "Assistant")
	assert.Contains(t, view, "Hello world")
	assert.Contains(t, view, "Sources:")
	assert.Equal(t, 1, strings.Count(view, "a.pdf"), "one chip per source")

	tr := m.Transcript()
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, model.TurnComplete, last.State)
	assert.Len(t, last.Citations, 2, "raw citations are kept")
}

func TestAsk_BlankQuestionIgnored(t *testing.T) {
	m, _ := newTestModel(t, staticOpener(leaseAnswer), nil)
	m = ask(t, m, "   ")
	tr := m.Transcript()
	assert.True(t, tr.IsEmpty())
}

func TestReveal_IsPacedNotInstant(t *testing.T) {
	m, coord := newTestModel(t, staticOpener(leaseAnswer), nil)
	m = ask(t, m, "q")
	require.Eventually(t, func() bool { return !coord.Busy() }, 5*time.Second, 5*time.Millisecond)

	m = update(t, m, TranscriptChangedMsg{})
	m = update(t, m, RevealTickMsg{})
	assert.Equal(t, "Hel", m.pacer.Displayed())
	assert.NotContains(t, m.View(), "Hello world")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Contains(t, m.View(), "Hello world")
}

func TestCitationPreview_TabSelectsSource(t *testing.T) {
	m, coord := newTestModel(t, staticOpener(leaseAnswer), nil)
	m = settle(t, ask(t, m, "rent?"), coord)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	c, ok := m.selectedCitation()
	require.True(t, ok)
	assert.Equal(t, "a.pdf", c.SourceName)

	view := m.View()
	assert.Contains(t, view, "rent is due on the first", "snippet shown on one line")
	assert.Contains(t, view, "chunk 0")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	_, ok = m.selectedCitation()
	assert.False(t, ok, "esc clears the selection when idle")
}

func TestEsc_CancelsStreamingAnswer(t *testing.T) {
	m, coord := newTestModel(t, hangingOpener{}, nil)

	m = ask(t, m, "long question")
	require.True(t, coord.Busy())
	assert.Contains(t, m.View(), "Answering")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, coord.Busy())

	m = update(t, m, TranscriptChangedMsg{})
	tr := m.Transcript()
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, model.TurnCancelled, last.State)
	assert.Contains(t, m.View(), "Cancelled")
}

func TestNewQuestion_SupersedesStreamingAnswer(t *testing.T) {
	m, coord := newTestModel(t, hangingOpener{}, nil)

	m = ask(t, m, "first")
	m = ask(t, m, "second")
	require.True(t, coord.Busy())

	snap := coord.Snapshot()
	require.Equal(t, 4, snap.Len())
	assert.Equal(t, model.TurnCancelled, snap.Turn(1).State)
	assert.Equal(t, model.TurnStreaming, snap.Turn(3).State)
}

func TestCtrlC_Quits(t *testing.T) {
	m, coord := newTestModel(t, hangingOpener{}, nil)
	m = ask(t, m, "q")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, coord.Busy())
}

func TestDocumentStrip(t *testing.T) {
	docs := fakeLister{docs: []backend.Document{{ID: 1, Filename: "a.pdf"}, {ID: 2, Filename: "b.docx"}}}
	m, _ := newTestModel(t, staticOpener(""), docs)
	assert.Contains(t, m.View(), "Loading documents...")

	m = update(t, m, fetchDocumentsCmd(docs)())
	assert.Contains(t, m.View(), "Documents (2): a.pdf, b.docx")

	m = update(t, m, DocumentsMsg{Err: errors.New("not logged in")})
	assert.Contains(t, m.View(), "Documents unavailable: not logged in")
}

func TestConfigReload(t *testing.T) {
	m, _ := newTestModel(t, staticOpener(""), nil)

	cfg := config.Default()
	cfg.UI.Theme = "dark"
	cfg.UI.RevealIntervalMs = 40
	m = update(t, m, ConfigReloadedMsg{Config: cfg})
	assert.Equal(t, 40*time.Millisecond, m.pacer.Interval())
	assert.True(t, m.renderMarkdown)

	m = update(t, m, ConfigReloadedMsg{Err: errors.New("ui.theme: invalid theme")})
	assert.Contains(t, m.View(), "config: ui.theme: invalid theme")
	assert.Equal(t, 40*time.Millisecond, m.pacer.Interval(), "bad reload keeps old settings")
}

func TestMarkdownRenderer_CachesPerTurn(t *testing.T) {
	r := newMarkdownRenderer("notty")
	out := r.Render("t1", "Hello world")
	assert.Contains(t, out, "Hello world")
	assert.Len(t, r.cache, 1)

	assert.Equal(t, out, r.Render("t1", "Hello world"))

	r.SetWidth(40)
	assert.Empty(t, r.cache)
}
