// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package perfset manages a fixed roster of named performance counters that
// are enabled, disabled, and read together.
package perfset

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aclements/perfharness/events"
	"github.com/aclements/perfharness/perf"
)

// counter is the subset of *perf.Counter used by a Set. Tests substitute
// fakes to exercise multiplexed and failed reads.
type counter interface {
	Start()
	Stop()
	Reset()
	ReadOne() (perf.Count, error)
	Close() error
}

type opener func(perf.Target, events.Event) (counter, error)

func openPerf(target perf.Target, ev events.Event) (counter, error) {
	c, err := perf.OpenCounter(target, ev)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// A Set is a roster of counters, each opened as its own perf event so every
// counter can be multiplexed (and detected as such) independently.
type Set struct {
	roster   []Descriptor
	counters []counter
	log      *zap.Logger
	enabled  bool

	// bases holds each counter's times as of the last Enable, so
	// multiplexing is judged per enabled span rather than since open.
	bases []perf.Count
}

type options struct {
	log *zap.Logger
}

// An Option configures [Open].
type Option func(*options)

// WithLogger sets the logger that receives degraded-read warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// Open opens one counter per descriptor on [perf.TargetInherit], so threads
// the calling thread creates afterwards are also counted. The counters start
// disabled. If any counter cannot be opened, the ones already opened are
// closed and an error naming the failed descriptor is returned.
func Open(roster []Descriptor, opts ...Option) (*Set, error) {
	return open(roster, openPerf, opts...)
}

// MustOpen is like [Open] but terminates the process through the logger's
// Fatal level if the roster cannot be opened.
func MustOpen(roster []Descriptor, opts ...Option) *Set {
	return mustOpen(roster, openPerf, opts...)
}

func mustOpen(roster []Descriptor, openFn opener, opts ...Option) *Set {
	s, err := open(roster, openFn, opts...)
	if err != nil {
		buildOptions(opts).log.Fatal("cannot open performance counters", zap.Error(err))
	}
	return s
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func open(roster []Descriptor, openFn opener, opts ...Option) (*Set, error) {
	o := buildOptions(opts)
	s := &Set{
		roster: append([]Descriptor(nil), roster...),
		log:    o.log,
		bases:  make([]perf.Count, len(roster)),
	}
	for _, d := range s.roster {
		c, err := openFn(perf.TargetInherit, d.Event)
		if err != nil {
			err = fmt.Errorf("perf counter %s (%s): %w", d.Name, d.Event.Class(), err)
			return nil, multierr.Append(err, s.Close())
		}
		s.counters = append(s.counters, c)
	}
	s.log.Debug("opened perf counters", zap.Strings("counters", s.Names()))
	return s, nil
}

// Names returns the counter names in roster order.
func (s *Set) Names() []string {
	names := make([]string, len(s.roster))
	for i, d := range s.roster {
		names[i] = d.Name
	}
	return names
}

// Roster returns the descriptors the Set was opened with.
func (s *Set) Roster() []Descriptor {
	return append([]Descriptor(nil), s.roster...)
}

// Enabled reports whether the counters are currently counting.
func (s *Set) Enabled() bool {
	return s.enabled
}

// Enable zeroes every counter and starts it. Counters are started one at a
// time, so their start times differ slightly.
func (s *Set) Enable() {
	for i, c := range s.counters {
		c.Reset()
		base, err := c.ReadOne()
		if err != nil {
			s.log.Warn("perf counter read failed", zap.String("counter", s.roster[i].Name), zap.Error(err))
			base = perf.Count{}
		}
		s.bases[i] = base
		c.Start()
	}
	s.enabled = true
}

// Disable stops every counter.
func (s *Set) Disable() {
	for _, c := range s.counters {
		c.Stop()
	}
	s.enabled = false
}

// ReadAll reads every counter. A counter that was multiplexed with other
// events since the last Enable, or whose read failed, reads as 0 and a
// warning is logged; the other counters are unaffected.
func (s *Set) ReadAll() Snapshot {
	snap := make(Snapshot, len(s.counters))
	for i, c := range s.counters {
		name := s.roster[i].Name
		count, err := c.ReadOne()
		switch {
		case err != nil:
			s.log.Warn("perf counter read failed", zap.String("counter", name), zap.Error(err))
		case count.MultiplexedSince(s.bases[i]):
			s.log.Warn("perf counter multiplexed",
				zap.String("counter", name),
				zap.Uint64("time_enabled", count.TimeEnabled-s.bases[i].TimeEnabled),
				zap.Uint64("time_running", count.TimeRunning-s.bases[i].TimeRunning),
			)
		default:
			snap[i] = count.RawValue
		}
	}
	return snap
}

// Close releases all counters.
func (s *Set) Close() error {
	var err error
	for _, c := range s.counters {
		err = multierr.Append(err, c.Close())
	}
	s.counters = nil
	s.enabled = false
	return err
}
