// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type openerFunc func(ctx context.Context, question string) (io.ReadCloser, error)

func (f openerFunc) OpenChat(ctx context.Context, question string) (io.ReadCloser, error) {
	return f(ctx, question)
}

func staticOpener(r io.Reader) Opener {
	return openerFunc(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	})
}

// recorder collects handler output under a lock.
type recorder struct {
	mu    sync.Mutex
	order []string
	text  strings.Builder
	cites []model.Citation
	done  chan error
}

func newRecorder() *recorder {
	return &recorder{done: make(chan error, 1)}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnText: func(s string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, "text:"+s)
			r.text.WriteString(s)
		},
		OnCitations: func(items []model.Citation) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.order = append(r.order, "cites")
			r.cites = append(r.cites, items...)
		},
		OnDone: func(err error) { r.done <- err },
	}
}

func (r *recorder) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func newTestController(o Opener) *Controller {
	return NewController(o, Config{ReadBufferSize: 7}, zerolog.Nop())
}

const helloBody = `{"type":"chunk","data":"Hel"}` + "\n" +
	`{"type":"chunk","data":"lo"}` + "\n" +
	`{"type":"citations","data":{"sourceName":"a.pdf","chunkIndex":0,"snippet":"x"}}` + "\n"

// =============================================================================
// DELIVERY TESTS
// =============================================================================

func TestSession_HelloScenario(t *testing.T) {
	rec := newRecorder()
	ctrl := newTestController(staticOpener(iotest.OneByteReader(strings.NewReader(helloBody))))

	sess := ctrl.Start(context.Background(), "hi", rec.handlers())
	require.NoError(t, rec.wait(t))
	<-sess.Done()

	assert.Equal(t, "Hello", rec.text.String())
	assert.Equal(t, []string{"text:Hel", "text:lo", "cites"}, rec.order)
	require.Len(t, rec.cites, 1)
	assert.Equal(t, "a.pdf", rec.cites[0].SourceName)
	assert.NoError(t, sess.Err())
	assert.False(t, sess.Cancelled())
	assert.Equal(t, int64(3), sess.Stats().Records.Load())
}

func TestSession_TrailingRecordWithoutNewline(t *testing.T) {
	rec := newRecorder()
	body := `{"type":"chunk","data":"a"}` + "\n" + `{"type":"chunk","data":"b"}`
	ctrl := newTestController(staticOpener(strings.NewReader(body)))

	ctrl.Start(context.Background(), "q", rec.handlers())
	require.NoError(t, rec.wait(t))
	assert.Equal(t, "ab", rec.text.String())
}

func TestSession_MalformedRecordsSkipped(t *testing.T) {
	rec := newRecorder()
	body := "garbage\n\n" +
		`{"type":"error","data":"boom"}` + "\n" +
		`{"type":"unknown","data":1}` + "\n" +
		`{"type":"chunk","data":"ok"}` + "\n"
	ctrl := newTestController(staticOpener(strings.NewReader(body)))

	sess := ctrl.Start(context.Background(), "q", rec.handlers())
	require.NoError(t, rec.wait(t))
	<-sess.Done()

	assert.Equal(t, []string{"text:ok"}, rec.order)
	assert.Equal(t, int64(3), sess.Stats().Dropped.Load())
}

func TestSession_QuestionPassedToOpener(t *testing.T) {
	var got string
	opener := openerFunc(func(_ context.Context, q string) (io.ReadCloser, error) {
		got = q
		return io.NopCloser(strings.NewReader("")), nil
	})
	rec := newRecorder()
	sess := newTestController(opener).Start(context.Background(), "what is x?", rec.handlers())
	require.NoError(t, rec.wait(t))
	assert.Equal(t, "what is x?", got)
	assert.Equal(t, "what is x?", sess.Question())
	assert.NotEmpty(t, sess.ID())
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestSession_TransportErrorKeepsDeliveredData(t *testing.T) {
	rec := newRecorder()
	boom := errors.New("connection reset by peer")
	body := io.MultiReader(
		strings.NewReader(`{"type":"chunk","data":"partial"}`+"\n"+`{"type":"chunk","data":"lost`),
		iotest.ErrReader(boom),
	)
	sess := newTestController(staticOpener(body)).Start(context.Background(), "q", rec.handlers())

	err := rec.wait(t)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, "partial", rec.text.String())

	<-sess.Done()
	assert.Equal(t, err, sess.Err())
}

func TestSession_OpenErrorReportedOnce(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	var calls atomic.Int32
	opener := openerFunc(func(context.Context, string) (io.ReadCloser, error) {
		return nil, boom
	})

	sess := newTestController(opener).Start(context.Background(), "q", Handlers{
		OnText: func(string) { t.Error("unexpected text") },
		OnDone: func(err error) {
			calls.Add(1)
			assert.Equal(t, boom, err)
		},
	})
	require.Equal(t, boom, sess.Wait(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

func TestSession_NoCallbacksAfterCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var texts atomic.Int32
	first := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	rec := newRecorder()
	h := rec.handlers()
	h.OnText = func(string) {
		texts.Add(1)
		once.Do(func() {
			close(first)
			<-release
		})
	}

	ctrl := NewController(staticOpener(pr), DefaultConfig(), zerolog.Nop())
	sess := ctrl.Start(context.Background(), "q", h)

	// Two records arrive in one write, so the second is buffered locally
	// while the first handler is still running.
	go func() {
		_, _ = pw.Write([]byte(`{"type":"chunk","data":"a"}` + "\n" + `{"type":"chunk","data":"b"}` + "\n"))
	}()
	<-first

	cancelled := make(chan struct{})
	go func() {
		sess.Cancel()
		close(cancelled)
	}()

	select {
	case <-cancelled:
		t.Fatal("Cancel returned while a handler was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-cancelled

	require.NoError(t, rec.wait(t))
	assert.Equal(t, int32(1), texts.Load(), "buffered record delivered after Cancel")
	assert.True(t, sess.Cancelled())
	assert.NoError(t, sess.Err())
}

func TestSession_CancelStopsBufferedRecordsAcrossHandlers(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var got []string
	var mu sync.Mutex
	entered := make(chan struct{})
	release := make(chan struct{})

	rec := newRecorder()
	h := rec.handlers()
	h.OnText = func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		if s == "a" {
			close(entered)
			<-release
		}
	}
	h.OnCitations = func([]model.Citation) {
		mu.Lock()
		got = append(got, "cites")
		mu.Unlock()
	}

	sess := newTestController(staticOpener(pr)).Start(context.Background(), "q", h)
	go func() {
		_, _ = pw.Write([]byte(`{"type":"chunk","data":"a"}` + "\n" +
			`{"type":"citations","data":{"filename":"x.pdf","chunk_index":1}}` + "\n" +
			`{"type":"chunk","data":"b"}` + "\n"))
	}()
	<-entered

	go func() {
		// Let Cancel publish the stop before the handler returns.
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	sess.Cancel()

	require.NoError(t, rec.wait(t))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a"}, got)
}

func TestSession_CancelBeforeOpenCompletes(t *testing.T) {
	opened := make(chan struct{})
	opener := openerFunc(func(ctx context.Context, _ string) (io.ReadCloser, error) {
		close(opened)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	rec := newRecorder()
	sess := newTestController(opener).Start(context.Background(), "q", rec.handlers())
	<-opened
	sess.Cancel()

	assert.NoError(t, rec.wait(t), "caller cancel is not an error")
	assert.True(t, sess.Cancelled())
	assert.Empty(t, rec.order)
}

func TestSession_CancelIdempotent(t *testing.T) {
	rec := newRecorder()
	sess := newTestController(staticOpener(strings.NewReader(helloBody))).Start(context.Background(), "q", rec.handlers())
	require.NoError(t, rec.wait(t))
	<-sess.Done()

	assert.NotPanics(t, func() {
		sess.Cancel()
		sess.Cancel()
	})
}

func TestSession_ParentContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	opener := openerFunc(func(ctx context.Context, _ string) (io.ReadCloser, error) {
		go func() {
			<-ctx.Done()
			pr.CloseWithError(ctx.Err())
		}()
		return pr, nil
	})

	rec := newRecorder()
	sess := newTestController(opener).Start(ctx, "q", rec.handlers())
	cancel()

	assert.NoError(t, rec.wait(t))
	assert.True(t, sess.Cancelled())
}
