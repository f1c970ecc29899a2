// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aclements/perfharness/perfset"
)

// fakeCounters is a two-counter roster whose values only move when the test
// advances them. Reading it while disabled fails the test.
type fakeCounters struct {
	t       *testing.T
	names   []string
	vals    perfset.Snapshot
	enabled bool
	enables int
	closed  bool
}

func newFakeCounters(t *testing.T) *fakeCounters {
	return &fakeCounters{t: t, names: []string{"task-clock", "cpu-cycles"}, vals: make(perfset.Snapshot, 2)}
}

func (f *fakeCounters) Names() []string { return f.names }

func (f *fakeCounters) Enable() {
	for i := range f.vals {
		f.vals[i] = 0
	}
	f.enabled = true
	f.enables++
}

func (f *fakeCounters) Disable() { f.enabled = false }

func (f *fakeCounters) ReadAll() perfset.Snapshot {
	if !f.enabled {
		f.t.Fatal("ReadAll while counters disabled")
	}
	return append(perfset.Snapshot(nil), f.vals...)
}

func (f *fakeCounters) Close() error {
	f.closed = true
	return nil
}

func (f *fakeCounters) advance(deltas ...uint64) {
	for i, d := range deltas {
		f.vals[i] += d
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSession(t *testing.T) (*Session, *fakeCounters, *fakeClock) {
	fc := newFakeCounters(t)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	return New(fc, WithClock(clock.now)), fc, clock
}

func get(t *testing.T, s *Session, key string) float64 {
	t.Helper()
	r := s.Results()
	v, ok := r.Get(key)
	require.True(t, ok, "missing result %q in %v", key, r.Keys())
	return v
}

func TestScenarioWithCounters(t *testing.T) {
	s, fc, clock := newSession(t)

	require.NoError(t, s.Prepare(true))
	require.NoError(t, s.Begin(GCStats(0, 0)))
	clock.advance(3 * time.Millisecond)
	fc.advance(100, 1000)
	require.NoError(t, s.STWBegin())
	clock.advance(5 * time.Millisecond)
	fc.advance(40, 300)
	require.NoError(t, s.STWEnd())
	clock.advance(2 * time.Millisecond)
	fc.advance(10, 50)
	require.NoError(t, s.End(GCStats(1, 5.0)))
	assert.False(t, fc.enabled, "counters left enabled after End")

	assert.Equal(t, 1.0, get(t, s, "GC"))
	assert.Equal(t, 5.0, get(t, s, "time.stw"))
	assert.Equal(t, 10.0, get(t, s, "time"))
	assert.Equal(t, 5.0, get(t, s, "time.other"))

	assert.Equal(t, 150.0, get(t, s, "task-clock"))
	assert.Equal(t, 1350.0, get(t, s, "cpu-cycles"))
	assert.Equal(t, 40.0, get(t, s, "task-clock.stw"))
	assert.Equal(t, 300.0, get(t, s, "cpu-cycles.stw"))
	assert.Equal(t, 110.0, get(t, s, "task-clock.other"))
	assert.Equal(t, 1050.0, get(t, s, "cpu-cycles.other"))

	r := s.Results()
	assert.Equal(t, []string{
		"GC", "time.stw", "time",
		"task-clock", "cpu-cycles",
		"task-clock.stw", "cpu-cycles.stw",
		"time.other", "task-clock.other", "cpu-cycles.other",
	}, r.Keys())
}

func TestScenarioWithoutCounters(t *testing.T) {
	s, fc, clock := newSession(t)

	require.NoError(t, s.Prepare(false))
	require.NoError(t, s.Begin(GCStats(0, 0)))
	clock.advance(7 * time.Millisecond)
	require.NoError(t, s.End(GCStats(1, 5.0)))

	assert.Zero(t, fc.enables, "counters enabled without being requested")
	r := s.Results()
	for _, k := range r.Keys() {
		assert.NotContains(t, []string{"task-clock", "cpu-cycles", "task-clock.stw", "cpu-cycles.stw"}, k)
	}
	assert.Equal(t, 1.0, get(t, s, "GC"))
	assert.Equal(t, 5.0, get(t, s, "time.stw"))
	elapsed := get(t, s, "time")
	assert.Equal(t, 7.0, elapsed)
	assert.Equal(t, elapsed-5.0, get(t, s, "time.other"))
}

func TestMultipleSTWAccumulate(t *testing.T) {
	s, fc, _ := newSession(t)
	require.NoError(t, s.Prepare(true))
	require.NoError(t, s.Begin(nil))

	want := []float64{0, 0}
	for i := uint64(1); i <= 4; i++ {
		fc.advance(1000, 1000) // Outside any pause.
		require.NoError(t, s.STWBegin())
		fc.advance(i, 10*i)
		want[0] += float64(i)
		want[1] += float64(10 * i)
		require.NoError(t, s.STWEnd())
	}
	require.NoError(t, s.End(nil))

	assert.Equal(t, want[0], get(t, s, "task-clock.stw"))
	assert.Equal(t, want[1], get(t, s, "cpu-cycles.stw"))
	assert.Equal(t, get(t, s, "task-clock")-want[0], get(t, s, "task-clock.other"))
}

func TestExternalStats(t *testing.T) {
	s, _, _ := newSession(t)
	require.NoError(t, s.Prepare(false))
	require.NoError(t, s.Begin(map[string]float64{"a": 1.5, "b": 10, "onlyBegin": 3}))
	require.NoError(t, s.End(map[string]float64{"a": 4.25, "b": 7, "onlyEnd": 9}))

	assert.Equal(t, 2.75, get(t, s, "a"))
	assert.Equal(t, -3.0, get(t, s, "b"))
	r := s.Results()
	assert.False(t, r.Has("onlyBegin"))
	assert.False(t, r.Has("onlyEnd"))
	// No caller time.stw and no counters: nothing to derive.
	assert.False(t, r.Has("time.other"))
}

func TestNoSTWNoOther(t *testing.T) {
	s, fc, _ := newSession(t)
	require.NoError(t, s.Prepare(true))
	require.NoError(t, s.Begin(nil))
	fc.advance(5, 5)
	require.NoError(t, s.End(nil))

	r := s.Results()
	assert.Equal(t, []string{"time", "task-clock", "cpu-cycles"}, r.Keys())
}

func TestTimeNonNegativeRealClock(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Prepare(false))
	start := time.Now()
	require.NoError(t, s.Begin(nil))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.End(nil))
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	got := get(t, s, "time")
	assert.GreaterOrEqual(t, got, 2.0)
	assert.LessOrEqual(t, got, elapsed)
}

func TestPrepareDiscardsResults(t *testing.T) {
	s, _, clock := newSession(t)
	require.NoError(t, s.Prepare(false))
	require.NoError(t, s.Begin(GCStats(0, 0)))
	clock.advance(time.Millisecond)
	require.NoError(t, s.End(GCStats(2, 1)))
	r := s.Results()
	require.NotZero(t, r.Len())
	require.NotEmpty(t, s.Report())

	require.NoError(t, s.Prepare(false))
	r = s.Results()
	assert.Zero(t, r.Len())
	assert.Empty(t, s.Report())
}

func TestPrepareAbandonsOpenInterval(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fc := newFakeCounters(t)
	s := New(fc, WithLogger(zap.New(core)))

	require.NoError(t, s.Prepare(true))
	require.NoError(t, s.Begin(nil))
	require.NoError(t, s.STWBegin())
	require.NoError(t, s.Prepare(true))
	assert.False(t, fc.enabled)
	assert.Equal(t, 1, logs.FilterMessage("abandoning open interval").Len())

	// The session is usable again.
	require.NoError(t, s.Begin(nil))
	require.NoError(t, s.End(nil))
}

func TestOrderErrors(t *testing.T) {
	s, _, _ := newSession(t)
	assert.ErrorIs(t, s.Begin(nil), ErrNotPrepared)
	assert.ErrorIs(t, s.STWBegin(), ErrNotPrepared)
	assert.ErrorIs(t, s.STWEnd(), ErrNotPrepared)
	assert.ErrorIs(t, s.End(nil), ErrNotPrepared)

	require.NoError(t, s.Prepare(true))
	assert.ErrorIs(t, s.STWBegin(), ErrNoInterval)
	assert.ErrorIs(t, s.STWEnd(), ErrNoInterval)
	assert.ErrorIs(t, s.End(nil), ErrNoInterval)

	require.NoError(t, s.Begin(nil))
	assert.ErrorIs(t, s.Begin(nil), ErrIntervalOpen)
	assert.ErrorIs(t, s.STWEnd(), ErrNoSTW)

	require.NoError(t, s.STWBegin())
	assert.ErrorIs(t, s.STWBegin(), ErrSTWOpen)
	assert.ErrorIs(t, s.End(nil), ErrSTWOpen)
	require.NoError(t, s.STWEnd())
	require.NoError(t, s.End(nil))
}

func TestNoCounters(t *testing.T) {
	s := New(nil)
	assert.ErrorIs(t, s.Prepare(true), ErrNoCounters)
	assert.ErrorIs(t, s.Begin(nil), ErrNotPrepared)
	require.NoError(t, s.Prepare(false))
}

func TestSTWTimeDisagreement(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := New(nil, WithLogger(zap.New(core)), WithClock(clock.now))

	run := func(reported float64, pause time.Duration) {
		require.NoError(t, s.Prepare(false))
		require.NoError(t, s.Begin(GCStats(0, 0)))
		require.NoError(t, s.STWBegin())
		clock.advance(pause)
		require.NoError(t, s.STWEnd())
		clock.advance(time.Millisecond)
		require.NoError(t, s.End(GCStats(1, reported)))
	}

	run(5.0, 5*time.Millisecond)
	assert.Zero(t, logs.Len())
	assert.Equal(t, 5*time.Millisecond, s.STWTime())

	run(20.0, 5*time.Millisecond)
	require.Equal(t, 1, logs.Len())
	// The caller's value wins.
	assert.Equal(t, 20.0, get(t, s, "time.stw"))
}

func TestClose(t *testing.T) {
	s, fc, _ := newSession(t)
	require.NoError(t, s.Prepare(true))
	require.NoError(t, s.Begin(nil))
	require.NoError(t, s.Close())
	assert.False(t, fc.enabled)
	assert.True(t, fc.closed)
	assert.ErrorIs(t, s.Begin(nil), ErrNotPrepared)
	assert.ErrorIs(t, s.Prepare(true), ErrNoCounters)
}
