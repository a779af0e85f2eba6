// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat: the full-screen TUI or a line-mode REPL.
//
// USABILITY: Line mode keeps input history and works over pipes
//
// Usage:
//
//	docchat chat            Full-screen chat (default when run in a terminal)
//	docchat chat --plain    Line-mode REPL
//
// REPL Commands:
//
//	/help, /h           Show help
//	/docs               List your documents
//	/transcript, /t     Print the conversation as markdown
//	/save FILE          Save the conversation (.md, .json or .html)
//	/quit, /q, /exit    Exit chat

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/exchange"
	"github.com/jeranaias/docchat-tui/internal/export"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/ui/chat"
	"github.com/jeranaias/docchat-tui/internal/util"
)

type chatOptions struct {
	plain  bool
	noPace bool
	save   string
}

func newChatCommand(app *App) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long: `Start an interactive chat about your documents.

In a terminal this opens the full-screen chat. With --plain, or when stdin
or stdout is not a terminal, it falls back to a line-mode REPL.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, app, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "use the line-mode REPL")
	cmd.Flags().BoolVar(&opts.noPace, "no-pace", false, "line mode: write text as soon as it arrives")
	cmd.Flags().StringVar(&opts.save, "save", "", "save the conversation on exit (.md, .json or .html)")
	return cmd
}

func runChat(cmd *cobra.Command, app *App, opts *chatOptions) error {
	if opts.plain || !IsTTY() || !IsStdoutTTY() {
		return runREPL(cmd, app, opts)
	}
	return runTUI(cmd, app, opts)
}

// saveTranscript exports t to path, in the format its extension names.
func saveTranscript(out io.Writer, app *App, path string, t model.Transcript) error {
	if t.IsEmpty() {
		fmt.Fprintln(out, DimStyle.Render("Nothing to save yet."))
		return nil
	}
	opts := export.DefaultOptions()
	opts.IncludeSnippets = app.Config.UI.ShowSnippets
	if app.Config.UI.Theme == "light" {
		opts.Theme = "light"
	}
	if err := export.ToFile(path, t, export.Meta{Server: app.Config.Backend.BaseURL}, opts); err != nil {
		return errors.Wrapf(err, "failed to save transcript to %s", path)
	}
	fmt.Fprintf(out, "Transcript saved to %s\n", path)
	return nil
}

// =============================================================================
// FULL-SCREEN CHAT
// =============================================================================

func runTUI(cmd *cobra.Command, app *App, opts *chatOptions) error {
	ctx := cmd.Context()
	coord := app.NewCoordinator(ctx)
	defer coord.Close()

	m := chat.New(chat.Options{
		Coordinator: coord,
		Documents:   app.Client,
		Config:      app.Config,
		Log:         app.Log.Logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if w := watchConfig(ctx, app, p); w != nil {
		defer w.Close()
	}

	final, err := p.Run()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return errors.Wrap(err, "chat UI failed")
	}

	if opts.save != "" {
		fm, ok := final.(chat.Model)
		if !ok {
			return nil
		}
		return saveTranscript(cmd.OutOrStdout(), app, opts.save, fm.Transcript())
	}
	return nil
}

// watchConfig forwards config file edits to the running program.
// Config given with --config is watched at that path.
func watchConfig(ctx context.Context, app *App, p *tea.Program) *config.Watcher {
	path := app.configPath
	if path == "" {
		if err := config.EnsureConfigDir(); err != nil {
			app.Log.Warn().Err(err).Msg("config watch disabled")
			return nil
		}
		var err error
		if path, err = config.ActivePath(); err != nil {
			app.Log.Warn().Err(err).Msg("config watch disabled")
			return nil
		}
	}

	w, err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err == nil {
			config.SetGlobal(cfg)
		}
		p.Send(chat.ConfigReloadedMsg{Config: cfg, Err: err})
	})
	if err != nil {
		app.Log.Warn().Err(err).Str("path", path).Msg("config watch disabled")
		return nil
	}
	return w
}

// =============================================================================
// LINE-MODE INPUT
// =============================================================================

// lineReader reads one line of user input per call.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
	log         zerolog.Logger
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI(log zerolog.Logger) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	// Get history file path in config directory
	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
		log:         log,
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	f, err := os.Open(c.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := c.line.ReadHistory(f); err != nil {
		c.log.Debug().Err(err).Msg("failed to read chat history")
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		c.log.Debug().Err(err).Msg("failed to save chat history")
		return
	}
	defer f.Close()
	if _, err := c.line.WriteHistory(f); err != nil {
		c.log.Debug().Err(err).Msg("failed to save chat history")
	}
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// pipedReader reads lines from a non-terminal stdin without prompting.
type pipedReader struct {
	scanner *bufio.Scanner
}

func newPipedReader(r io.Reader) *pipedReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &pipedReader{scanner: s}
}

func (p *pipedReader) ReadInput(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *pipedReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

// replSession is the state of one line-mode chat.
type replSession struct {
	app   *App
	coord *exchange.Coordinator
	tw    *Typewriter
	out   io.Writer
	errw  io.Writer
	style answerStyle
}

func runREPL(cmd *cobra.Command, app *App, opts *chatOptions) error {
	out := cmd.OutOrStdout()

	var in lineReader
	if IsTTY() {
		in = NewChatCLI(app.Log.Logger)
	} else {
		in = newPipedReader(cmd.InOrStdin())
	}
	defer in.Close()

	coord := app.NewCoordinator(context.Background())
	defer coord.Close()

	ui := app.Config.UI
	s := &replSession{
		app:   app,
		coord: coord,
		tw:    NewTypewriter(out, ui.RevealInterval(), ui.RevealCharsPerTick, opts.noPace || !ColorsEnabled()),
		out:   out,
		errw:  cmd.ErrOrStderr(),
		style: answerStyle{snippets: ui.ShowSnippets, width: GetTerminalWidth()},
	}

	// A Ctrl-C during an answer cancels that answer only.
	base := context.WithoutCancel(cmd.Context())

	if IsTTY() {
		printWelcome(out, app)
	}
	for {
		input, err := in.ReadInput(PromptStyle.Render("docchat> "))
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				app.Log.Warn().Err(err).Msg("input failed")
			}
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			cont, err := s.handleSlashCommand(base, input)
			if err != nil {
				fmt.Fprintf(s.errw, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !cont {
				break
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}

		qctx, stop := signal.NotifyContext(base, os.Interrupt)
		_, err = answer(qctx, coord, out, s.tw, input, s.style)
		stop()
		if err != nil && !errors.Is(err, ErrInterrupted) {
			fmt.Fprintf(s.errw, "%s %s\n", ErrorStyle.Render("[Error]"), FriendlyError(err, app.Config.Backend.BaseURL))
		}
	}

	if opts.save != "" {
		return saveTranscript(out, app, opts.save, coord.Snapshot())
	}
	return nil
}

// handleSlashCommand runs a REPL command and reports whether to keep going.
func (s *replSession) handleSlashCommand(ctx context.Context, input string) (bool, error) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printREPLHelp(s.out)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/docs":
		return true, printDocuments(ctx, s.app, s.out)

	case "/transcript", "/t":
		t := s.coord.Snapshot()
		if t.IsEmpty() {
			fmt.Fprintln(s.out, DimStyle.Render(chat.EmptyHint))
			return true, nil
		}
		fmt.Fprint(s.out, t.Markdown())
		return true, nil

	case "/save":
		if len(args) != 1 {
			return true, usageErrorf("usage: /save FILE")
		}
		return true, saveTranscript(s.out, s.app, args[0], s.coord.Snapshot())

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

func printWelcome(out io.Writer, app *App) {
	fmt.Fprintln(out, TitleStyle.Render("docchat")+" "+DimStyle.Render(app.Config.Backend.BaseURL))
	fmt.Fprintln(out, DimStyle.Render(chat.EmptyHint+". Type /help for commands."))
	fmt.Fprintln(out)
}

func printREPLHelp(out io.Writer) {
	commands := []struct{ name, desc string }{
		{"/docs", "List your documents"},
		{"/transcript, /t", "Print the conversation as markdown"},
		{"/save FILE", "Save the conversation (.md, .json or .html)"},
		{"/help, /h", "Show this help"},
		{"/quit, /q", "Exit chat"},
	}
	fmt.Fprintln(out, TitleStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(out, "  %s %s\n", util.PadRight(c.name, 18), DimStyle.Render(c.desc))
	}
	fmt.Fprintln(out, DimStyle.Render("  Ctrl-C stops the current answer."))
}
