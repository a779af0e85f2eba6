// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for docchat.
package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// DefaultWatchDebounce coalesces editor save bursts into a single reload.
const DefaultWatchDebounce = 200 * time.Millisecond

// ReloadFunc receives the freshly loaded config, or the error that prevented
// loading it. cfg is nil when err is non-nil.
type ReloadFunc func(cfg *Config, err error)

// Watcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file so that atomic
// rename-over saves (including SaveTOML) are seen.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload ReloadFunc

	mu      sync.Mutex
	pending time.Time // zero when nothing is pending

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for path. A debounce <= 0 uses DefaultWatchDebounce.
func NewWatcher(path string, debounce time.Duration, onReload ReloadFunc) (*Watcher, error) {
	if onReload == nil {
		return nil, errors.New("config watcher needs a reload callback")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	return &Watcher{
		path:     filepath.Clean(path),
		watcher:  fsw,
		debounce: debounce,
		onReload: onReload,
	}, nil
}

// Watch starts watching until ctx is cancelled or Close is called.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", filepath.Dir(w.path))
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// processEvents records changes to the watched file.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onReload(nil, errors.Wrap(err, "config watcher"))
		}
	}
}

// processPending reloads once the file has been quiet for the debounce period.
func (w *Watcher) processPending() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if ready {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if ready {
				w.onReload(LoadFromPath(w.path))
			}
		}
	}
}

// Watch is a convenience wrapper that watches path until ctx is done.
func Watch(ctx context.Context, path string, onReload ReloadFunc) (*Watcher, error) {
	w, err := NewWatcher(path, DefaultWatchDebounce, onReload)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(ctx); err != nil {
		w.watcher.Close()
		return nil, err
	}
	return w, nil
}
