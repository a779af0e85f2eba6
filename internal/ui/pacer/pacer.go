// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pacer reveals streamed answer text at a fixed rate.
//
// Network delivery is bursty: a whole paragraph may arrive in one read and
// then nothing for a second. The Pacer decouples what has been received
// (the target) from what is shown (a rune prefix of the target) so the
// answer types out smoothly. It never holds back delivery into the
// transcript; it only decides how much of it to draw.
//
// Ticks come from the caller's fixed-period timer (tea.Tick in the TUI, a
// rate limiter in line mode), never from network timing.
package pacer

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// PACER CONFIGURATION
// =============================================================================

const (
	// DefaultInterval is the reveal tick period.
	DefaultInterval = 15 * time.Millisecond

	// DefaultCharsPerTick is how many runes each tick reveals.
	DefaultCharsPerTick = 1
)

// State is the pacer's position relative to its target.
type State int

const (
	// Idle means everything received has been shown.
	Idle State = iota
	// CatchingUp means the shown prefix is shorter than the target.
	CatchingUp
)

// String returns the state name.
func (s State) String() string {
	if s == CatchingUp {
		return "catching-up"
	}
	return "idle"
}

// =============================================================================
// PACER
// =============================================================================

// Pacer tracks a growing target string and the prefix revealed so far.
//
// Thread-safety: all methods take a mutex, so the target may be set from a
// stream goroutine while the render loop ticks.
type Pacer struct {
	mu sync.Mutex

	key    string // turn the target belongs to
	target string
	runes  []rune
	shown  int

	interval     time.Duration
	charsPerTick int
}

// New creates a pacer. Non-positive arguments take the defaults.
func New(interval time.Duration, charsPerTick int) *Pacer {
	p := &Pacer{}
	p.SetRate(interval, charsPerTick)
	return p
}

// NewDefault creates a pacer revealing one rune every 15ms.
func NewDefault() *Pacer {
	return New(DefaultInterval, DefaultCharsPerTick)
}

// SetRate changes the reveal rate without touching the displayed prefix.
func (p *Pacer) SetRate(interval time.Duration, charsPerTick int) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if charsPerTick <= 0 {
		charsPerTick = DefaultCharsPerTick
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = interval
	p.charsPerTick = charsPerTick
}

// Interval returns the tick period the caller should use.
func (p *Pacer) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetTarget updates the text to reveal. key identifies the turn; a new key,
// or a text that does not extend the current target (it shrank or was
// replaced), resets the display to empty.
func (p *Pacer) SetTarget(key, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if key == p.key && text == p.target {
		return
	}
	if key != p.key || !strings.HasPrefix(text, p.target) {
		p.shown = 0
	}
	p.key = key
	p.target = text
	p.runes = []rune(text)
}

// Tick advances the displayed prefix by one step. It reports whether the
// display changed; false means the pacer is idle.
func (p *Pacer) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shown >= len(p.runes) {
		return false
	}
	p.shown += p.charsPerTick
	if p.shown > len(p.runes) {
		p.shown = len(p.runes)
	}
	return true
}

// Skip reveals the whole target at once.
func (p *Pacer) Skip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = len(p.runes)
}

// Displayed returns the revealed prefix.
func (p *Pacer) Displayed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shown == len(p.runes) {
		return p.target
	}
	return string(p.runes[:p.shown])
}

// Key returns the turn key of the current target.
func (p *Pacer) Key() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

// State reports whether the pacer is idle or catching up.
func (p *Pacer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shown < len(p.runes) {
		return CatchingUp
	}
	return Idle
}

// CatchingUp is shorthand for State() == CatchingUp.
func (p *Pacer) CatchingUp() bool {
	return p.State() == CatchingUp
}

// Progress returns the revealed and total rune counts.
func (p *Pacer) Progress() (shown, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown, len(p.runes)
}
