// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harness

// Well-known result keys.
const (
	KeyGC   = "GC"   // Collections, supplied by the caller.
	KeyTime = "time" // Wall-clock milliseconds between Begin and End.

	SuffixSTW   = ".stw"
	SuffixOther = ".other"

	// KeySTWTime is the caller-supplied cumulative pause time in ms.
	KeySTWTime = KeyTime + SuffixSTW
)

// GCStats returns the conventional external statistics passed to
// [Session.Begin] and [Session.End] by a garbage-collected runtime: the
// number of collections so far and the cumulative stop-the-world time in
// milliseconds.
func GCStats(gcCount int, stwTimeMs float64) map[string]float64 {
	return map[string]float64{
		KeyGC:      float64(gcCount),
		KeySTWTime: stwTimeMs,
	}
}

// A Result is one reported statistic.
type Result struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Results is an ordered set of statistics. Keys are unique and iterate in
// insertion order. The zero value is empty and ready to use.
type Results struct {
	entries []Result
	index   map[string]int
}

// Set sets key to v, appending key if it is new.
func (r *Results) Set(key string, v float64) {
	if i, ok := r.index[key]; ok {
		r.entries[i].Value = v
		return
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, Result{key, v})
}

// Add adds v to key, treating a missing key as 0.
func (r *Results) Add(key string, v float64) {
	old, _ := r.Get(key)
	r.Set(key, old+v)
}

// Get returns the value of key and whether it is present.
func (r *Results) Get(key string) (float64, bool) {
	i, ok := r.index[key]
	if !ok {
		return 0, false
	}
	return r.entries[i].Value, true
}

// Has reports whether key is present.
func (r *Results) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Len returns the number of entries.
func (r *Results) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the entries in order.
func (r *Results) Entries() []Result {
	return append([]Result(nil), r.entries...)
}

// Keys returns the keys in order.
func (r *Results) Keys() []string {
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}

// Values returns the values in the same order as [Results.Keys].
func (r *Results) Values() []float64 {
	vals := make([]float64, len(r.entries))
	for i, e := range r.entries {
		vals[i] = e.Value
	}
	return vals
}

// Clone returns an independent copy of r.
func (r *Results) Clone() Results {
	var c Results
	for _, e := range r.entries {
		c.Set(e.Key, e.Value)
	}
	return c
}
