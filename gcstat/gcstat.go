// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gcstat samples the Go runtime's cumulative garbage collection
// statistics in the form a harness session expects.
package gcstat

import (
	"runtime"
	"time"

	"github.com/aclements/perfharness/harness"
)

// A Sample is a point-in-time reading of cumulative GC statistics.
type Sample struct {
	NumGC      int           // Completed GC cycles.
	PauseTotal time.Duration // Cumulative stop-the-world pause time.
}

// Read samples the current process. It briefly stops the world.
func Read() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Sample{NumGC: int(ms.NumGC), PauseTotal: time.Duration(ms.PauseTotalNs)}
}

// Stats returns s as the {"GC", "time.stw"} statistics for
// [harness.Session.Begin] and [harness.Session.End].
func (s Sample) Stats() map[string]float64 {
	return harness.GCStats(s.NumGC, float64(s.PauseTotal)/float64(time.Millisecond))
}
