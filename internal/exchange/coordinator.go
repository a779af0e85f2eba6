// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exchange owns the transcript and the single active stream session.
//
// The Coordinator is the only writer of its model.Transcript. Asking a new
// question cancels the previous session synchronously before the new
// question is submitted, so at most one session ever writes to the last
// assistant turn.
package exchange

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/stream"
)

// =============================================================================
// TYPES
// =============================================================================

// Starter starts a streaming session. *stream.Controller implements it.
type Starter interface {
	Start(ctx context.Context, question string, h stream.Handlers) *stream.Session
}

// AskOptions carries per-exchange observers. They run on the session
// goroutine after the transcript has been updated, and never after the
// exchange is cancelled. They must not call back into the Coordinator's
// Ask or Cancel.
type AskOptions struct {
	OnText      func(text string)
	OnCitations func(items []model.Citation)
	OnDone      func(turn model.Turn, err error)
}

// Exchange is one question/answer pair and the session populating it.
type Exchange struct {
	// TurnIndex is the assistant turn this exchange writes to.
	TurnIndex int
	Question  string

	coord   *Coordinator
	session *stream.Session
	done    chan struct{}
	err     error
}

// Coordinator serialises questions against one transcript.
type Coordinator struct {
	ctx     context.Context
	starter Starter
	log     zerolog.Logger

	// askMu serialises Ask and Cancel. Handlers never take it.
	askMu sync.Mutex

	// mu guards transcript and active. Held only briefly.
	mu         sync.Mutex
	transcript model.Transcript
	active     *Exchange

	changes chan struct{}
}

// NewCoordinator creates a coordinator. Sessions are derived from ctx.
func NewCoordinator(ctx context.Context, starter Starter, log zerolog.Logger) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Coordinator{
		ctx:     ctx,
		starter: starter,
		log:     log.With().Str("component", "exchange").Logger(),
		changes: make(chan struct{}, 1),
	}
}

// =============================================================================
// QUESTIONS
// =============================================================================

// Ask cancels any active exchange, submits question and starts streaming
// its answer. The previous session has stopped delivering before the new
// turn pair is appended.
func (c *Coordinator) Ask(question string) *Exchange {
	return c.AskWith(question, AskOptions{})
}

// AskWith is Ask with per-exchange observers.
func (c *Coordinator) AskWith(question string, opts AskOptions) *Exchange {
	c.askMu.Lock()
	defer c.askMu.Unlock()

	c.mu.Lock()
	prev := c.active
	c.mu.Unlock()
	if prev != nil {
		c.cancelLocked(prev)
	}

	c.mu.Lock()
	idx := c.transcript.Submit(question)
	ex := &Exchange{
		TurnIndex: idx,
		Question:  question,
		coord:     c,
		done:      make(chan struct{}),
	}
	c.active = ex
	c.mu.Unlock()
	c.signal()

	ex.session = c.starter.Start(c.ctx, question, c.handlers(ex, opts))
	c.log.Debug().Int("turn", idx).Str("session_id", ex.session.ID()).Msg("exchange started")
	return ex
}

// Cancel stops the active exchange, if any, and reports whether there was one.
func (c *Coordinator) Cancel() bool {
	c.askMu.Lock()
	defer c.askMu.Unlock()

	c.mu.Lock()
	ex := c.active
	c.mu.Unlock()
	if ex == nil {
		return false
	}
	c.cancelLocked(ex)
	return true
}

// cancelLocked cancels ex and finalizes its turn. askMu must be held.
func (c *Coordinator) cancelLocked(ex *Exchange) {
	ex.session.Cancel()

	c.mu.Lock()
	c.transcript.Finalize(ex.TurnIndex, model.TurnCancelled, nil)
	if c.active == ex {
		c.active = nil
	}
	c.mu.Unlock()

	c.log.Debug().Int("turn", ex.TurnIndex).Str("session_id", ex.session.ID()).Msg("exchange cancelled")
	c.signal()
}

// handlers binds a session's output to the exchange's turn.
func (c *Coordinator) handlers(ex *Exchange, opts AskOptions) stream.Handlers {
	return stream.Handlers{
		OnText: func(text string) {
			if !c.apply(ex, model.AppendText{TurnIndex: ex.TurnIndex, Text: text}) {
				return
			}
			if opts.OnText != nil {
				opts.OnText(text)
			}
		},
		OnCitations: func(items []model.Citation) {
			if !c.apply(ex, model.AppendCitations{TurnIndex: ex.TurnIndex, Items: items}) {
				return
			}
			if opts.OnCitations != nil {
				opts.OnCitations(items)
			}
		},
		OnDone: func(err error) {
			turn := c.finish(ex, err)
			if opts.OnDone != nil {
				opts.OnDone(turn, err)
			}
			close(ex.done)
		},
	}
}

// apply folds one action into the transcript if ex is still the active
// exchange. A stale exchange is logged and dropped.
func (c *Coordinator) apply(ex *Exchange, a model.Action) bool {
	c.mu.Lock()
	if c.active != ex {
		c.mu.Unlock()
		c.log.Warn().Int("turn", ex.TurnIndex).Msg("dropped event from superseded exchange")
		return false
	}
	c.transcript.Apply(a)
	c.mu.Unlock()

	c.signal()
	return true
}

func (c *Coordinator) finish(ex *Exchange, err error) model.Turn {
	state := model.TurnComplete
	switch {
	case err != nil:
		state = model.TurnFailed
	case c.ctx.Err() != nil:
		state = model.TurnCancelled
	}

	c.mu.Lock()
	c.transcript.Finalize(ex.TurnIndex, state, err)
	if c.active == ex {
		c.active = nil
	}
	turn := c.transcript.Turn(ex.TurnIndex)
	c.mu.Unlock()

	ex.err = err
	if err != nil {
		c.log.Warn().Err(err).Int("turn", ex.TurnIndex).Msg("exchange failed")
	}
	c.signal()
	return turn
}

// Close cancels the active exchange. The transcript stays readable.
func (c *Coordinator) Close() {
	c.Cancel()
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot returns a deep copy of the transcript.
func (c *Coordinator) Snapshot() model.Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Snapshot()
}

// Turn returns a copy of one turn.
func (c *Coordinator) Turn(index int) model.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Turn(index)
}

// Active returns the exchange currently streaming, or nil.
func (c *Coordinator) Active() *Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Busy reports whether an exchange is streaming.
func (c *Coordinator) Busy() bool {
	return c.Active() != nil
}

// Changes delivers a signal after the transcript changes. Signals
// coalesce: one receive may stand for many changes, so readers take a
// fresh Snapshot after each.
func (c *Coordinator) Changes() <-chan struct{} {
	return c.changes
}

func (c *Coordinator) signal() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// =============================================================================
// EXCHANGE
// =============================================================================

// Cancel stops this exchange. It is a no-op once the exchange has ended.
func (ex *Exchange) Cancel() {
	c := ex.coord
	c.askMu.Lock()
	defer c.askMu.Unlock()
	c.cancelLocked(ex)
}

// Done is closed once the exchange has ended and its turn is final.
func (ex *Exchange) Done() <-chan struct{} {
	return ex.done
}

// Err returns the transport error that ended the exchange, or nil.
// Valid after Done is closed.
func (ex *Exchange) Err() error {
	select {
	case <-ex.done:
		return ex.err
	default:
		return nil
	}
}

// Wait blocks until the exchange ends or ctx is done.
func (ex *Exchange) Wait(ctx context.Context) error {
	select {
	case <-ex.done:
		return ex.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SessionID returns the id of the stream session serving this exchange.
func (ex *Exchange) SessionID() string {
	return ex.session.ID()
}
