// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// perfbench is a utility for measuring a Go benchmark with a harness session
// and reporting the results as benchmark metrics.
package perfbench

import (
	"fmt"
	"testing"

	"github.com/aclements/perfharness/gcstat"
	"github.com/aclements/perfharness/harness"
)

// Counters measures one benchmark run. Every result of the run is reported as
// a per-op metric named after its result key, for example "cpu-cycles/op",
// "GC/op", "time.stw/op", and "cpu-cycles.other/op".
type Counters struct {
	b  testingB
	bN int

	s       *harness.Session
	results harness.Results
	stopped bool
}

// Open begins measuring benchmark b. Performance counters count the calling
// goroutine's thread and threads it creates, which does not include the Go
// runtime's GC workers. If counters cannot be opened, the error is logged
// once and only time and GC statistics are reported.
//
// The interval ends in a b.Cleanup function. If the benchmark does substantial
// other work in cleanup functions, it may want to call [Counters.Stop]
// explicitly before returning.
func Open(b *testing.B) *Counters {
	printUnits()
	s, err := harness.Open(nil)
	if err != nil {
		// Only report each error once, to avoid flooding benchmark log.
		msg := fmt.Sprintf("error opening counters: %v", err)
		if _, prev := openErrors.Swap(msg, true); !prev {
			b.Logf("%s", msg)
		}
		s = harness.New(nil)
	}
	return open(b, b.N, s)
}

// PauseBegin marks the start of a stop-the-world section of the benchmark,
// such as a forced collection. Counter deltas between PauseBegin and PauseEnd
// are reported under ".stw" and excluded from ".other".
func (cs *Counters) PauseBegin() {
	if err := cs.s.STWBegin(); err != nil {
		cs.b.Logf("PauseBegin: %v", err)
	}
}

// PauseEnd marks the end of a section started by PauseBegin.
func (cs *Counters) PauseEnd() {
	if err := cs.s.STWEnd(); err != nil {
		cs.b.Logf("PauseEnd: %v", err)
	}
}

// Stop ends the measured interval and reports its metrics. Later calls do
// nothing.
func (cs *Counters) Stop() {
	if cs.stopped {
		return
	}
	cs.stopped = true
	if err := cs.s.End(gcstat.Read().Stats()); err != nil {
		cs.b.Logf("error ending interval: %v", err)
		return
	}
	cs.results = cs.s.Results()
	for _, r := range cs.results.Entries() {
		cs.b.ReportMetric(r.Value/float64(cs.bN), r.Key+"/op")
	}
}

// Total returns the total value of the named result, which is a reported
// metric name without the "/op". If the interval has not ended or the result
// is unknown, this returns 0, false.
func (cs *Counters) Total(name string) (float64, bool) {
	return cs.results.Get(name)
}
