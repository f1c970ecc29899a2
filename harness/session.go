// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package harness brackets a benchmark run and reports elapsed time, deltas
// of caller-supplied statistics, and performance counter deltas, with the
// stop-the-world (STW) portion of each separated from the rest.
//
// A [Session] is driven through Prepare, Begin, any number of STWBegin/STWEnd
// pairs, and End. End computes
//
//   - K for every statistic K supplied to both Begin and End: end - begin,
//   - "time": milliseconds between Begin and End,
//   - N for every counter N: counter delta between Begin and End,
//   - N.stw: sum of counter deltas over all STW sub-intervals,
//   - B.other: B - B.stw, for "time" and every counter B where both exist.
package harness

import (
	"errors"
	"io"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/aclements/perfharness/perfset"
)

// Counters is a roster of performance counters read by a [Session].
// [*perfset.Set] implements it.
type Counters interface {
	Names() []string
	Enable()
	Disable()
	ReadAll() perfset.Snapshot
}

// Errors returned when Session methods are called out of order. The session
// is left unchanged.
var (
	ErrNotPrepared  = errors.New("harness: session not prepared")
	ErrIntervalOpen = errors.New("harness: interval already begun")
	ErrNoInterval   = errors.New("harness: no interval begun")
	ErrSTWOpen      = errors.New("harness: STW sub-interval already begun")
	ErrNoSTW        = errors.New("harness: no STW sub-interval begun")
	ErrNoCounters   = errors.New("harness: session has no performance counters")
)

type armState uint8

const (
	idle armState = iota
	armedNoCounters
	armedWithCounters
)

type phase uint8

const (
	outside phase = iota
	inInterval
	inSTW
)

// A Session measures one interval at a time. It is not safe for concurrent
// use; the caller must serialize all calls.
type Session struct {
	counters Counters
	names    []string
	log      *zap.Logger
	now      func() time.Time

	arm   armState
	phase phase

	beginStats map[string]float64
	beginTime  time.Time
	beginSnap  perfset.Snapshot

	stwBeginTime time.Time
	stwSnap      perfset.Snapshot
	stwCount     int
	stwTime      time.Duration
	stwDeltas    []float64

	results Results
	report  string
}

type options struct {
	log *zap.Logger
	now func() time.Time
}

// An Option configures a [Session].
type Option func(*options)

// WithLogger sets the logger for warnings and debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces time.Now as the session's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns an idle session reading the given counters. counters may be
// nil, in which case the session can only be prepared without counters.
func New(counters Counters, opts ...Option) *Session {
	o := buildOptions(opts)
	s := &Session{counters: counters, log: o.log, now: o.now}
	if counters != nil {
		s.names = counters.Names()
	}
	return s
}

func (s *Session) counting() bool {
	return s.arm == armedWithCounters
}

// Prepare arms the session and discards previous results. It may be called
// any number of times. If an interval is still open it is abandoned.
func (s *Session) Prepare(includeCounters bool) error {
	if includeCounters && s.counters == nil {
		return ErrNoCounters
	}
	if s.phase != outside {
		s.log.Warn("abandoning open interval")
		if s.counting() {
			s.counters.Disable()
		}
		s.phase = outside
	}
	if includeCounters {
		s.arm = armedWithCounters
	} else {
		s.arm = armedNoCounters
	}
	s.results = Results{}
	s.report = ""
	return nil
}

// Begin starts an interval. stats is the baseline for the caller's
// cumulative statistics.
func (s *Session) Begin(stats map[string]float64) error {
	switch {
	case s.arm == idle:
		return ErrNotPrepared
	case s.phase != outside:
		return ErrIntervalOpen
	}

	s.beginStats = make(map[string]float64, len(stats))
	for k, v := range stats {
		s.beginStats[k] = v
	}
	s.stwCount = 0
	s.stwTime = 0
	s.stwDeltas = make([]float64, len(s.names))
	if s.counting() {
		s.counters.Enable()
		s.beginSnap = s.counters.ReadAll()
	}
	s.beginTime = s.now()
	s.phase = inInterval
	return nil
}

func (s *Session) requireInterval() error {
	switch {
	case s.arm == idle:
		return ErrNotPrepared
	case s.phase == outside:
		return ErrNoInterval
	case s.phase == inSTW:
		return ErrSTWOpen
	}
	return nil
}

// STWBegin starts a stop-the-world sub-interval of the current interval.
func (s *Session) STWBegin() error {
	if err := s.requireInterval(); err != nil {
		return err
	}
	s.stwBeginTime = s.now()
	if s.counting() {
		s.stwSnap = s.counters.ReadAll()
	}
	s.phase = inSTW
	return nil
}

// STWEnd ends the current stop-the-world sub-interval and adds its counter
// deltas to the N.stw totals.
func (s *Session) STWEnd() error {
	switch {
	case s.arm == idle:
		return ErrNotPrepared
	case s.phase == outside:
		return ErrNoInterval
	case s.phase != inSTW:
		return ErrNoSTW
	}
	if s.counting() {
		snap := s.counters.ReadAll()
		for i := range s.names {
			s.stwDeltas[i] += snap.Delta(s.stwSnap, i)
		}
	}
	s.stwTime += s.now().Sub(s.stwBeginTime)
	s.stwCount++
	s.phase = inInterval
	return nil
}

// End finishes the interval, computes its results, and renders the report.
// stats holds the final values of the caller's cumulative statistics; only
// keys also given to Begin are reported.
func (s *Session) End(stats map[string]float64) error {
	if err := s.requireInterval(); err != nil {
		return err
	}

	endTime := s.now()
	var endSnap perfset.Snapshot
	if s.counting() {
		endSnap = s.counters.ReadAll()
		s.counters.Disable()
	}

	var r Results
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if begin, ok := s.beginStats[k]; ok {
			r.Set(k, stats[k]-begin)
		}
	}
	elapsed := millis(endTime.Sub(s.beginTime))
	r.Set(KeyTime, elapsed)
	if s.counting() {
		for i, name := range s.names {
			r.Set(name, endSnap.Delta(s.beginSnap, i))
		}
		if s.stwCount > 0 {
			for i, name := range s.names {
				r.Add(name+SuffixSTW, s.stwDeltas[i])
			}
		}
	}
	s.derive(&r)
	s.checkSTWTime(&r)

	s.results = r
	s.report = Render(&r)
	s.phase = outside
	s.log.Debug("interval finished",
		zap.Int("stw_intervals", s.stwCount),
		zap.Float64("time_ms", elapsed),
	)
	return nil
}

// derive adds B.other = B - B.stw for "time" and each counter B.
func (s *Session) derive(r *Results) {
	for _, base := range append([]string{KeyTime}, s.names...) {
		total, ok := r.Get(base)
		if !ok {
			continue
		}
		stw, ok := r.Get(base + SuffixSTW)
		if !ok {
			continue
		}
		r.Set(base+SuffixOther, total-stw)
	}
}

// checkSTWTime warns when the caller reported a pause time that disagrees
// with the wall time measured across STWBegin/STWEnd. The caller's value is
// kept.
func (s *Session) checkSTWTime(r *Results) {
	if s.stwCount == 0 {
		return
	}
	reported, ok := r.Get(KeySTWTime)
	if !ok {
		return
	}
	measured := millis(s.stwTime)
	diff := math.Abs(reported - measured)
	if diff > 1 && diff > 0.1*math.Max(reported, measured) {
		s.log.Warn("reported STW time disagrees with bracketed STW time",
			zap.Float64("reported_ms", reported),
			zap.Float64("bracketed_ms", measured),
			zap.Int("stw_intervals", s.stwCount),
		)
	}
}

// Results returns a copy of the results of the last completed interval since
// the last Prepare.
func (s *Session) Results() Results {
	return s.results.Clone()
}

// Report returns the rendered report of the last completed interval, or ""
// if there is none.
func (s *Session) Report() string {
	return s.report
}

// CounterNames returns the names of the session's counters in report order,
// or nil if it has none.
func (s *Session) CounterNames() []string {
	if s.counters == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// STWTime returns the wall time spent inside STW sub-intervals of the
// current or last interval.
func (s *Session) STWTime() time.Duration {
	return s.stwTime
}

// Close abandons any open interval and releases the counters if they
// implement io.Closer.
func (s *Session) Close() error {
	if s.phase != outside && s.counting() {
		s.counters.Disable()
	}
	s.phase = outside
	s.arm = idle
	if c, ok := s.counters.(io.Closer); ok {
		s.counters = nil
		return c.Close()
	}
	s.counters = nil
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
