// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question answering on stdout.
//
// Usage:
//
//	docchat ask "What does section 4 say about retention?"
//	echo "summarise the lease" | docchat ask -
//	docchat ask --json "Who signed the contract?"

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/exchange"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

type askOptions struct {
	noPace   bool
	jsonOut  bool
	markdown bool
}

// AnswerJSON is the --json payload of ask.
type AnswerJSON struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	State    model.TurnState  `json:"state"`
	Sources  []model.Citation `json:"sources"`
	Error    string           `json:"error,omitempty"`
}

func newAskCommand(app *App) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask one question and stream the answer",
		Long: `Ask one question about your documents and stream the answer to stdout.

Use "-" as the question to read it from stdin. Press Ctrl-C to stop the
answer early.`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runAsk(cmd, app, question, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.noPace, "no-pace", false, "write text as soon as it arrives")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the finished answer as JSON")
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "render the finished answer as markdown")
	return cmd
}

// readQuestion joins args, reading stdin when the only argument is "-".
func readQuestion(stdin io.Reader, args []string) (string, error) {
	question := strings.Join(args, " ")
	if question == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		question = string(data)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", usageErrorf("question is empty")
	}
	return question, nil
}

func runAsk(cmd *cobra.Command, app *App, question string, opts *askOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	coord := app.NewCoordinator(context.Background())
	defer coord.Close()

	if opts.jsonOut {
		return OutputJSON(out, true, "ask", func() (interface{}, error) {
			ex := coord.Ask(question)
			stop := context.AfterFunc(ctx, ex.Cancel)
			defer stop()

			<-ex.Done()
			turn := coord.Turn(ex.TurnIndex)
			if turn.State == model.TurnCancelled {
				return nil, ErrInterrupted
			}
			if err := ex.Err(); err != nil {
				return nil, err
			}
			return AnswerJSON{
				Question: question,
				Answer:   turn.Text,
				State:    turn.State,
				Sources:  turn.DisplayCitations(),
			}, nil
		})
	}

	ui := app.Config.UI
	tw := NewTypewriter(out, ui.RevealInterval(), ui.RevealCharsPerTick, opts.noPace || !ColorsEnabled())
	_, err := answer(ctx, coord, out, tw, question, answerStyle{
		markdown: opts.markdown,
		snippets: ui.ShowSnippets,
		width:    GetTerminalWidth(),
	})
	return err
}

// =============================================================================
// SHARED ANSWER FLOW
// =============================================================================

type answerStyle struct {
	markdown bool
	snippets bool
	width    int
}

// answer asks question, writes the answer and its sources to out, and
// reports how the turn ended. Cancelling ctx cancels the exchange.
func answer(ctx context.Context, coord *exchange.Coordinator, out io.Writer, tw *Typewriter, question string, style answerStyle) (model.Turn, error) {
	ex := coord.Ask(question)
	stop := context.AfterFunc(ctx, ex.Cancel)
	defer stop()

	source := func() model.Turn { return coord.Turn(ex.TurnIndex) }

	var turn model.Turn
	if style.markdown {
		<-ex.Done()
		turn = source()
		fmt.Fprint(out, renderMarkdown(turn.Text, style.width))
	} else {
		var err error
		turn, err = tw.Run(context.WithoutCancel(ctx), coord.Changes(), source)
		fmt.Fprintln(out)
		if err != nil {
			ex.Cancel()
			return turn, err
		}
		<-ex.Done()
	}

	printSources(out, turn, style)

	switch turn.State {
	case model.TurnCancelled:
		fmt.Fprintln(out, DimStyle.Render("[cancelled]"))
		return turn, ErrInterrupted
	case model.TurnFailed:
		if err := ex.Err(); err != nil {
			return turn, err
		}
		return turn, fmt.Errorf("answer failed: %s", turn.Err)
	}
	return turn, nil
}

// printSources lists the deduplicated citations of turn.
func printSources(out io.Writer, turn model.Turn, style answerStyle) {
	cits := turn.DisplayCitations()
	if len(cits) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Sources"))
	for i, c := range cits {
		fmt.Fprintf(out, "  [%d] %s %s\n", i+1, SourceStyle.Render(c.SourceName), DimStyle.Render(fmt.Sprintf("(chunk %d)", c.ChunkIndex)))
		if style.snippets && strings.TrimSpace(c.Snippet) != "" {
			width := style.width - 6
			if width < 20 {
				width = 20
			}
			fmt.Fprintf(out, "      %s\n", DimStyle.Render(util.Preview(c.Snippet, width)))
		}
	}
}

// renderMarkdown renders text for the terminal, returning it unchanged if
// glamour fails.
func renderMarkdown(text string, width int) string {
	style := "notty"
	if ColorsEnabled() {
		style = "light"
		if termenv.HasDarkBackground() {
			style = "dark"
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text + "\n"
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return rendered
}
