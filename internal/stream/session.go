// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes the chat backend's NDJSON response body.
package stream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// CONTROLLER CONFIGURATION
// =============================================================================

// Opener issues the chat request and returns the streaming response body.
// The body must stop producing data once ctx is cancelled or it is closed.
type Opener interface {
	OpenChat(ctx context.Context, question string) (io.ReadCloser, error)
}

// Config holds options for the stream controller.
type Config struct {
	// ReadBufferSize is the size of each body read (default: 4096)
	ReadBufferSize int
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{ReadBufferSize: 4096}
}

// Handlers receive a session's output. Any of them may be nil.
//
// OnText and OnCitations run on the session goroutine in record order.
// They must not call Cancel on their own session.
type Handlers struct {
	OnText      func(text string)
	OnCitations func(items []model.Citation)

	// OnDone fires exactly once when the session ends: nil on a clean end
	// of stream or a caller cancel, otherwise the transport error.
	OnDone func(err error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller starts streaming exchanges against an Opener.
//
// The Controller is safe for concurrent use. It does not enforce a single
// active session; callers cancel the previous Session before starting the
// next one.
type Controller struct {
	opener   Opener
	log      zerolog.Logger
	readSize int
}

// NewController creates a controller. Zero config values take defaults.
func NewController(opener Opener, cfg Config, log zerolog.Logger) *Controller {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultConfig().ReadBufferSize
	}
	return &Controller{
		opener:   opener,
		log:      log.With().Str("component", "stream").Logger(),
		readSize: cfg.ReadBufferSize,
	}
}

// Start opens the chat request for question and drives its body in a new
// goroutine. It returns immediately; the request is issued asynchronously.
func (c *Controller) Start(ctx context.Context, question string, h Handlers) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:       uuid.NewString(),
		question: question,
		started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.log = c.log.With().Str("session_id", s.id).Logger()

	go s.run(ctx, c, h)
	return s
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one in-flight question/answer exchange.
type Session struct {
	id       string
	question string
	started  time.Time
	log      zerolog.Logger
	cancel   context.CancelFunc

	// stopped is set before Cancel waits on deliverMu, so the reader sees
	// it at the next record or read even while a handler is running.
	stopped atomic.Bool
	// deliverMu is held while a record is delivered. Cancel takes it, so
	// once Cancel returns no handler is running and none will run again.
	deliverMu sync.Mutex

	bodyMu sync.Mutex
	body   io.ReadCloser
	closed bool

	done chan struct{}
	err  error

	stats Stats
}

// Stats counts what a session has processed.
type Stats struct {
	Bytes     atomic.Int64
	Records   atomic.Int64
	Chunks    atomic.Int64
	Citations atomic.Int64
	Dropped   atomic.Int64
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Question returns the question this session asked.
func (s *Session) Question() string { return s.question }

// Stats returns live counters for the session.
func (s *Session) Stats() *Stats { return &s.stats }

// Cancel stops the session. After Cancel returns no further OnText or
// OnCitations call happens, even for data already read. The transport is
// torn down. Cancel is idempotent and safe to call after the session ended.
func (s *Session) Cancel() {
	s.stopped.Store(true)
	s.cancel()
	s.closeBody()

	// Wait out a handler that is already running.
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
}

// Cancelled reports whether Cancel was called or the parent context ended.
func (s *Session) Cancelled() bool {
	return s.stopped.Load()
}

// Done is closed after OnDone has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the terminal transport error, or nil. Valid after Done.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run(ctx context.Context, c *Controller, h Handlers) {
	err := s.consume(ctx, c, h)
	if err != nil && (ctx.Err() != nil || s.Cancelled()) {
		err = nil
		s.markCancelled()
	}

	s.err = err
	if err != nil {
		s.log.Warn().Err(err).Int64("records", s.stats.Records.Load()).Msg("stream failed")
	} else {
		s.log.Debug().
			Int64("bytes", s.stats.Bytes.Load()).
			Int64("records", s.stats.Records.Load()).
			Int64("dropped", s.stats.Dropped.Load()).
			Bool("cancelled", s.Cancelled()).
			Dur("elapsed", time.Since(s.started)).
			Msg("stream ended")
	}

	if h.OnDone != nil {
		h.OnDone(err)
	}
	s.cancel()
	close(s.done)
}

func (s *Session) consume(ctx context.Context, c *Controller, h Handlers) error {
	body, err := c.opener.OpenChat(ctx, s.question)
	if err != nil {
		return err
	}
	if !s.setBody(body) {
		return context.Canceled
	}
	defer s.closeBody()

	dec := NewFrameDecoder()
	buf := make([]byte, c.readSize)
	for {
		n, rerr := body.Read(buf)
		if s.stopped.Load() {
			return context.Canceled
		}
		if n > 0 {
			s.stats.Bytes.Add(int64(n))
			for _, rec := range dec.Feed(buf[:n]) {
				if !s.deliver(rec, h) {
					return context.Canceled
				}
			}
		}

		if rerr == io.EOF {
			if rec, ok := dec.Flush(); ok && !s.deliver(rec, h) {
				return context.Canceled
			}
			return nil
		}
		if rerr != nil {
			return errors.Wrap(rerr, "read response body")
		}
	}
}

// deliver classifies and hands one record to the handlers. It returns false
// once the session is cancelled.
func (s *Session) deliver(rec string, h Handlers) bool {
	if s.stopped.Load() {
		return false
	}
	s.stats.Records.Add(1)
	ev, ok, err := Classify(rec)
	if err != nil {
		s.stats.Dropped.Add(1)
		if errors.Is(err, ErrUpstreamReported) {
			s.log.Warn().Err(err).Msg("backend error record")
		} else {
			s.log.Debug().Err(err).Str("record", util.TruncateRunes(rec, 120)).Msg("dropped record")
		}
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.stopped.Load() {
		return false
	}
	if !ok {
		return true
	}

	switch ev.Kind {
	case KindChunk:
		s.stats.Chunks.Add(1)
		if h.OnText != nil {
			h.OnText(ev.Text)
		}
	case KindCitations:
		s.stats.Citations.Add(1)
		if h.OnCitations != nil {
			h.OnCitations(ev.Citations)
		}
	}
	return true
}

func (s *Session) markCancelled() {
	s.stopped.Store(true)
}

// setBody records the body so Cancel can close it. It returns false and
// closes body if the session was already cancelled.
func (s *Session) setBody(body io.ReadCloser) bool {
	s.bodyMu.Lock()
	defer s.bodyMu.Unlock()
	s.body = body
	if s.closed {
		body.Close()
		return false
	}
	return true
}

func (s *Session) closeBody() {
	s.bodyMu.Lock()
	defer s.bodyMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.body != nil {
		s.body.Close()
	}
}
