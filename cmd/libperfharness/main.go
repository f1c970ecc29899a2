// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Libperfharness exposes the benchmark harness to C callers, such as a
// language runtime's GC benchmark driver. Build it with
//
//	go build -buildmode=c-shared -o libperfharness.so ./cmd/libperfharness
//
// Sessions are referred to by positive integer handles. Calls on one handle
// must come from a single thread, which is also the thread whose counters
// are measured. Misuse, such as an unknown handle or calls out of order, is
// logged to stderr and otherwise ignored.
package main

/*
#include <stdlib.h>

typedef struct {
	int count;
	char **keys;
	double *values;
} harness_results_t;
*/
import "C"

import (
	"os"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/aclements/perfharness/harness"
)

// sessions maps live handles to their sessions.
var (
	mu       sync.Mutex
	sessions = map[C.int]*harness.Session{}
	nextID   C.int
)

var logger = sync.OnceValue(func() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
})

func register(s *harness.Session) C.int {
	mu.Lock()
	defer mu.Unlock()
	nextID++
	sessions[nextID] = s
	return nextID
}

func lookup(h C.int) *harness.Session {
	mu.Lock()
	defer mu.Unlock()
	s := sessions[h]
	if s == nil {
		logger().Warn("unknown harness handle", zap.Int("handle", int(h)))
	}
	return s
}

func check(op string, h C.int, err error) {
	if err != nil {
		logger().Warn("harness call failed", zap.String("op", op), zap.Int("handle", int(h)), zap.Error(err))
	}
}

// harness_open creates a session. If with_counters is nonzero, events is a
// comma-separated roster (NULL or "" for the default roster) and the process
// exits if any counter cannot be opened.
//
//export harness_open
func harness_open(withCounters C.int, events *C.char) C.int {
	if withCounters == 0 {
		return register(harness.New(nil, harness.WithLogger(logger())))
	}
	var names []string
	if events != nil {
		if s := C.GoString(events); s != "" {
			names = strings.Split(s, ",")
		}
	}
	return register(harness.MustOpen(names, harness.WithLogger(logger())))
}

//export harness_close
func harness_close(h C.int) {
	mu.Lock()
	s := sessions[h]
	delete(sessions, h)
	mu.Unlock()
	if s == nil {
		logger().Warn("unknown harness handle", zap.Int("handle", int(h)))
		return
	}
	check("close", h, s.Close())
}

//export harness_prepare
func harness_prepare(h C.int, includeCounters C.int) {
	s := lookup(h)
	if s == nil {
		return
	}
	check("prepare", h, s.Prepare(includeCounters != 0))
}

//export harness_begin
func harness_begin(h C.int, gcCount C.int, stwTimeMs C.double) {
	s := lookup(h)
	if s == nil {
		return
	}
	check("begin", h, s.Begin(harness.GCStats(int(gcCount), float64(stwTimeMs))))
}

//export harness_stw_begin
func harness_stw_begin(h C.int) {
	s := lookup(h)
	if s == nil {
		return
	}
	check("stw_begin", h, s.STWBegin())
}

//export harness_stw_end
func harness_stw_end(h C.int) {
	s := lookup(h)
	if s == nil {
		return
	}
	check("stw_end", h, s.STWEnd())
}

// harness_end ends the interval and prints the report to standard output.
//
//export harness_end
func harness_end(h C.int, gcCount C.int, stwTimeMs C.double) {
	s := lookup(h)
	if s == nil {
		return
	}
	if err := s.End(harness.GCStats(int(gcCount), float64(stwTimeMs))); err != nil {
		check("end", h, err)
		return
	}
	_, err := os.Stdout.WriteString(s.Report())
	check("end", h, err)
}

// harness_result_as_string returns the last report, to be released with
// harness_string_free, or NULL if there is none.
//
//export harness_result_as_string
func harness_result_as_string(h C.int) *C.char {
	s := lookup(h)
	if s == nil || s.Report() == "" {
		return nil
	}
	return C.CString(s.Report())
}

//export harness_string_free
func harness_string_free(p *C.char) {
	C.free(unsafe.Pointer(p))
}

// harness_results returns the last results in report order, to be released
// with harness_results_free, or NULL for an unknown handle.
//
//export harness_results
func harness_results(h C.int) *C.harness_results_t {
	s := lookup(h)
	if s == nil {
		return nil
	}
	r := s.Results()
	entries := r.Entries()
	n := len(entries)

	out := (*C.harness_results_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.harness_results_t{}))))
	out.count = C.int(n)
	if n == 0 {
		return out
	}
	out.keys = (**C.char)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof((*C.char)(nil)))))
	out.values = (*C.double)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.double(0)))))
	keys := unsafe.Slice(out.keys, n)
	values := unsafe.Slice(out.values, n)
	for i, e := range entries {
		keys[i] = C.CString(e.Key)
		values[i] = C.double(e.Value)
	}
	return out
}

//export harness_results_free
func harness_results_free(r *C.harness_results_t) {
	if r == nil {
		return
	}
	if r.keys != nil {
		for _, k := range unsafe.Slice(r.keys, int(r.count)) {
			C.free(unsafe.Pointer(k))
		}
		C.free(unsafe.Pointer(r.keys))
	}
	C.free(unsafe.Pointer(r.values))
	C.free(unsafe.Pointer(r))
}

func main() {}
