// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goString copies a NUL-terminated C string. C.GoString is not available in
// test files.
func goString[T ~int8 | ~uint8](p *T) string {
	if p == nil {
		return ""
	}
	var b []byte
	for q := unsafe.Pointer(p); *(*byte)(q) != 0; q = unsafe.Add(q, 1) {
		b = append(b, *(*byte)(q))
	}
	return string(b)
}

func TestResultsExport(t *testing.T) {
	h := harness_open(0, nil)
	require.Positive(t, int(h))
	defer harness_close(h)

	harness_prepare(h, 0)
	// Nothing measured yet.
	r := harness_results(h)
	require.NotNil(t, r)
	assert.Zero(t, int(r.count))
	harness_results_free(r)
	assert.Nil(t, harness_result_as_string(h))

	harness_begin(h, 0, 0)
	harness_end(h, 1, 5.0)

	r = harness_results(h)
	require.NotNil(t, r)
	n := int(r.count)
	require.Equal(t, 4, n)
	var keys []string
	vals := map[string]float64{}
	cvals := unsafe.Slice(r.values, n)
	for i, k := range unsafe.Slice(r.keys, n) {
		key := goString(k)
		keys = append(keys, key)
		vals[key] = float64(cvals[i])
	}
	harness_results_free(r)

	assert.Equal(t, []string{"GC", "time.stw", "time", "time.other"}, keys)
	assert.Equal(t, 1.0, vals["GC"])
	assert.Equal(t, 5.0, vals["time.stw"])
	assert.GreaterOrEqual(t, vals["time"], 0.0)
	assert.InDelta(t, vals["time"]-5.0, vals["time.other"], 1e-9)

	s := harness_result_as_string(h)
	require.NotNil(t, s)
	report := goString(s)
	harness_string_free(s)
	assert.Contains(t, report, "============================ Statistics Totals ============================\n")
	assert.Contains(t, report, "GC\ttime.stw\ttime\ttime.other\t\n1.00\t5.00\t")
	assert.Contains(t, report, "------------------------------ End Statistics -----------------------------\n")
}

func TestSTWBrackets(t *testing.T) {
	h := harness_open(0, nil)
	defer harness_close(h)

	harness_prepare(h, 0)
	harness_begin(h, 0, 0)
	harness_stw_begin(h)
	harness_stw_end(h)
	// Out of order: logged and ignored.
	harness_stw_end(h)
	harness_end(h, 2, 0.5)

	r := harness_results(h)
	require.NotNil(t, r)
	defer harness_results_free(r)
	assert.Equal(t, 4, int(r.count))
}

func TestHandles(t *testing.T) {
	h1 := harness_open(0, nil)
	h2 := harness_open(0, nil)
	assert.NotEqual(t, h1, h2)

	// Sessions are independent.
	harness_prepare(h1, 0)
	harness_begin(h1, 0, 0)
	harness_end(h1, 3, 0)
	harness_prepare(h2, 0)
	s := harness_result_as_string(h1)
	assert.NotNil(t, s)
	harness_string_free(s)
	assert.Nil(t, harness_result_as_string(h2))
	harness_close(h2)

	harness_close(h1)
	assert.Nil(t, harness_results(h1))
	assert.Nil(t, harness_result_as_string(h1))
	// Closing twice and calls on unknown handles are ignored.
	harness_close(h1)
	harness_prepare(h1, 1)
	harness_begin(h1, 0, 0)
	harness_end(h1, 0, 0)
	assert.Nil(t, harness_results(9999))
	harness_results_free(nil)
}
