// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pacer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_RevealsOneRunePerTick(t *testing.T) {
	p := NewDefault()
	p.SetTarget("t1", "héllo")

	assert.Equal(t, "", p.Displayed())
	assert.Equal(t, CatchingUp, p.State())

	want := []string{"h", "hé", "hél", "héll", "héllo"}
	for _, w := range want {
		require.True(t, p.Tick())
		assert.Equal(t, w, p.Displayed())
	}

	assert.False(t, p.Tick(), "idle once caught up")
	assert.Equal(t, Idle, p.State())
}

func TestPacer_GrowingTargetResumes(t *testing.T) {
	p := NewDefault()
	p.SetTarget("t1", "ab")
	p.Tick()
	p.Tick()
	assert.False(t, p.CatchingUp())

	p.SetTarget("t1", "abcd")
	assert.True(t, p.CatchingUp())
	assert.Equal(t, "ab", p.Displayed(), "growth keeps the shown prefix")

	p.Tick()
	assert.Equal(t, "abc", p.Displayed())
}

func TestPacer_ShrinkOrReplaceResets(t *testing.T) {
	p := NewDefault()
	p.SetTarget("t1", "hello")
	p.Skip()
	require.Equal(t, "hello", p.Displayed())

	p.SetTarget("t1", "hel")
	assert.Equal(t, "", p.Displayed())

	p.Skip()
	p.SetTarget("t1", "world")
	assert.Equal(t, "", p.Displayed())
}

func TestPacer_NewTurnResets(t *testing.T) {
	p := NewDefault()
	p.SetTarget("t1", "hello")
	p.Skip()

	// Same text prefix but a different turn still starts over.
	p.SetTarget("t2", "hello there")
	assert.Equal(t, "", p.Displayed())
	assert.Equal(t, "t2", p.Key())
}

func TestPacer_CharsPerTick(t *testing.T) {
	p := New(10*time.Millisecond, 3)
	p.SetTarget("t", "abcdefg")

	require.True(t, p.Tick())
	assert.Equal(t, "abc", p.Displayed())
	require.True(t, p.Tick())
	assert.Equal(t, "abcdef", p.Displayed())
	require.True(t, p.Tick())
	assert.Equal(t, "abcdefg", p.Displayed())
	assert.False(t, p.Tick())

	shown, total := p.Progress()
	assert.Equal(t, 7, shown)
	assert.Equal(t, 7, total)
	assert.Equal(t, 10*time.Millisecond, p.Interval())
}

func TestPacer_SetRateDefaults(t *testing.T) {
	p := New(0, 0)
	assert.Equal(t, DefaultInterval, p.Interval())

	p.SetTarget("t", "ab")
	p.Tick()
	assert.Equal(t, "a", p.Displayed())
}

func TestPacer_SameTargetIsNoOp(t *testing.T) {
	p := NewDefault()
	p.SetTarget("t", "abc")
	p.Tick()
	p.SetTarget("t", "abc")
	assert.Equal(t, "a", p.Displayed())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "catching-up", CatchingUp.String())
}
