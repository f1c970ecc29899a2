// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfbench

import (
	"fmt"
	"sync"

	"github.com/aclements/perfharness/gcstat"
	"github.com/aclements/perfharness/harness"
)

// testingB is the *testing.B interface needed by Counters. Used for testing.
type testingB interface {
	ReportMetric(n float64, unit string)
	Logf(format string, args ...any)
	Cleanup(func())
}

var printUnits = sync.OnceFunc(func() {
	// Print unit metadata. Everything we report is a cost.
	for _, name := range []string{harness.KeyGC, harness.KeyTime} {
		fmt.Printf("Unit %s/op better=lower\n", name)
	}
	fmt.Printf("\n")
})

var openErrors sync.Map

func open(b testingB, bN int, s *harness.Session) *Counters {
	cs := &Counters{b: b, bN: bN, s: s}
	if err := s.Prepare(s.CounterNames() != nil); err != nil {
		b.Logf("error preparing harness: %v", err)
	}
	b.Cleanup(cs.close)
	if err := s.Begin(gcstat.Read().Stats()); err != nil {
		b.Logf("error beginning interval: %v", err)
	}
	return cs
}

func (cs *Counters) close() {
	if cs.b == nil {
		return
	}
	cs.Stop()
	if err := cs.s.Close(); err != nil {
		cs.b.Logf("error closing counters: %v", err)
	}
	cs.b = nil
}
