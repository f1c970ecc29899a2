// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfset

// A Snapshot holds one raw count per counter in a [Set], in roster order. A
// single Snapshot means nothing on its own; only the difference between two
// Snapshots taken while the Set stayed enabled is meaningful.
type Snapshot []uint64

// Delta returns s[i] - base[i] for counter i. Counters only grow while
// enabled, so a decrease means one of the two reads was degraded to 0; the
// delta is then reported as 0 rather than wrapping around.
func (s Snapshot) Delta(base Snapshot, i int) float64 {
	if i >= len(s) || i >= len(base) || s[i] < base[i] {
		return 0
	}
	return float64(s[i] - base[i])
}
