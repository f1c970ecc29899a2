// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package harness

import (
	"go.uber.org/zap"

	"github.com/aclements/perfharness/perfset"
)

// Open opens counters for the named events (perfset.DefaultEvents if none
// are given) and returns a session that owns them. The counters follow the
// calling goroutine's thread and threads that thread creates after Open. Go
// runtime threads, including GC workers, are started elsewhere and are
// usually not counted; see
// [github.com/aclements/perfharness/perf.TargetInherit].
func Open(eventNames []string, opts ...Option) (*Session, error) {
	roster, err := parseRoster(eventNames)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	set, err := perfset.Open(roster, perfset.WithLogger(o.log))
	if err != nil {
		return nil, err
	}
	return New(set, opts...), nil
}

// MustOpen is like [Open] but terminates the process if the counters cannot
// be opened.
func MustOpen(eventNames []string, opts ...Option) *Session {
	o := buildOptions(opts)
	roster, err := parseRoster(eventNames)
	if err != nil {
		o.log.Fatal("cannot resolve performance counters", zap.Error(err))
	}
	return New(perfset.MustOpen(roster, perfset.WithLogger(o.log)), opts...)
}

func parseRoster(eventNames []string) ([]perfset.Descriptor, error) {
	if len(eventNames) == 0 {
		eventNames = perfset.DefaultEvents
	}
	return perfset.ParseRoster(eventNames)
}
