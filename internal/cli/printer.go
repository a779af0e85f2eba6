// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// printer.go - Paced answer output for line mode.
//
// The Typewriter is the line-mode counterpart of the TUI's reveal tick: it
// drives the same pacer from a rate limiter and writes each newly revealed
// slice of the answer to a plain writer.

package cli

import (
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/ui/pacer"
)

// Typewriter writes an assistant turn to out as it grows.
type Typewriter struct {
	out     io.Writer
	pacer   *pacer.Pacer
	limiter *rate.Limiter
	instant bool

	// written counts the runes of the current turn already sent to out.
	written int
}

// NewTypewriter creates a typewriter revealing charsPerTick runes per
// interval. With instant set, text is written as soon as it arrives.
func NewTypewriter(out io.Writer, interval time.Duration, charsPerTick int, instant bool) *Typewriter {
	p := pacer.New(interval, charsPerTick)
	return &Typewriter{
		out:     out,
		pacer:   p,
		limiter: rate.NewLimiter(rate.Every(p.Interval()), 1),
		instant: instant,
	}
}

// Run writes the turn returned by source until it is final and fully
// written, then returns it. changes signals that source may have moved on.
//
// Cancelled and failed turns are flushed at once.
func (t *Typewriter) Run(ctx context.Context, changes <-chan struct{}, source func() model.Turn) (model.Turn, error) {
	for {
		turn := source()
		if turn.ID != t.pacer.Key() {
			t.written = 0
		}
		t.pacer.SetTarget(turn.ID, turn.Text)

		if t.instant || turn.State == model.TurnCancelled || turn.State == model.TurnFailed {
			t.pacer.Skip()
		}
		if t.pacer.CatchingUp() {
			if err := t.limiter.Wait(ctx); err != nil {
				return turn, err
			}
			t.pacer.Tick()
		}
		if err := t.flush(); err != nil {
			return turn, err
		}

		if t.pacer.CatchingUp() {
			continue
		}
		if turn.State.IsFinal() {
			return turn, nil
		}

		select {
		case <-changes:
		case <-ctx.Done():
			return turn, ctx.Err()
		}
	}
}

func (t *Typewriter) flush() error {
	shown := []rune(t.pacer.Displayed())
	if len(shown) <= t.written {
		return nil
	}
	chunk := string(shown[t.written:])
	t.written = len(shown)
	_, err := io.WriteString(t.out, chunk)
	return err
}
