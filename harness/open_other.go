// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package harness

import (
	"errors"
	"runtime"

	"go.uber.org/zap"
)

// ErrUnsupported is returned by Open on systems without perf events.
var ErrUnsupported = errors.New("harness: performance counters are not supported on " + runtime.GOOS)

// Open always fails on this system. Use [New] with nil Counters to measure
// time and caller-supplied statistics only.
func Open(eventNames []string, opts ...Option) (*Session, error) {
	return nil, ErrUnsupported
}

// MustOpen terminates the process; see [Open].
func MustOpen(eventNames []string, opts ...Option) *Session {
	buildOptions(opts).log.Fatal("cannot open performance counters", zap.Error(ErrUnsupported))
	return nil
}
