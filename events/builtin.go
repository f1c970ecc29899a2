// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

type builtinEvent struct {
	typ    uint32
	config uint64
}

type cacheName struct {
	name   string
	config uint64
}

type builtinTable struct {
	cpu      map[string]builtinEvent // No PMU or cpu/ PMU
	software map[string]builtinEvent // No PMU

	cache       []cacheName
	cacheOp     []cacheName
	cacheResult []cacheName
	// cacheAllowed maps a cache level to the bitmap of permitted ops.
	cacheAllowed map[uint64]uint8
}

// builtins holds the event names that correspond to well-known perf event
// configs and thus generally don't appear in /sys. Each generic event also
// answers to its kernel constant name, e.g. PERF_COUNT_HW_CPU_CYCLES.
var builtins = sync.OnceValue(func() *builtinTable {
	t := &builtinTable{
		cpu:      make(map[string]builtinEvent),
		software: make(map[string]builtinEvent),
	}

	// See parse-events.c:event_symbols_hw
	hw := []struct {
		config uint64
		names  []string
	}{
		{unix.PERF_COUNT_HW_CPU_CYCLES, []string{"PERF_COUNT_HW_CPU_CYCLES", "cpu-cycles", "cycles"}},
		{unix.PERF_COUNT_HW_INSTRUCTIONS, []string{"PERF_COUNT_HW_INSTRUCTIONS", "instructions"}},
		{unix.PERF_COUNT_HW_CACHE_REFERENCES, []string{"PERF_COUNT_HW_CACHE_REFERENCES", "cache-references"}},
		{unix.PERF_COUNT_HW_CACHE_MISSES, []string{"PERF_COUNT_HW_CACHE_MISSES", "cache-misses"}},
		{unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS, []string{"PERF_COUNT_HW_BRANCH_INSTRUCTIONS", "branch-instructions", "branches"}},
		{unix.PERF_COUNT_HW_BRANCH_MISSES, []string{"PERF_COUNT_HW_BRANCH_MISSES", "branch-misses"}},
		{unix.PERF_COUNT_HW_BUS_CYCLES, []string{"PERF_COUNT_HW_BUS_CYCLES", "bus-cycles"}},
		{unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND, []string{"PERF_COUNT_HW_STALLED_CYCLES_FRONTEND", "stalled-cycles-frontend", "idle-cycles-frontend"}},
		{unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND, []string{"PERF_COUNT_HW_STALLED_CYCLES_BACKEND", "stalled-cycles-backend", "idle-cycles-backend"}},
		{unix.PERF_COUNT_HW_REF_CPU_CYCLES, []string{"PERF_COUNT_HW_REF_CPU_CYCLES", "ref-cycles"}},
	}
	for _, e := range hw {
		for _, name := range e.names {
			t.cpu[name] = builtinEvent{unix.PERF_TYPE_HARDWARE, e.config}
		}
	}

	// See parse-events.c:event_symbols_sw
	sw := []struct {
		config uint64
		names  []string
	}{
		{unix.PERF_COUNT_SW_CPU_CLOCK, []string{"PERF_COUNT_SW_CPU_CLOCK", "cpu-clock"}},
		{unix.PERF_COUNT_SW_TASK_CLOCK, []string{"PERF_COUNT_SW_TASK_CLOCK", "task-clock"}},
		{unix.PERF_COUNT_SW_PAGE_FAULTS, []string{"PERF_COUNT_SW_PAGE_FAULTS", "page-faults", "faults"}},
		{unix.PERF_COUNT_SW_CONTEXT_SWITCHES, []string{"PERF_COUNT_SW_CONTEXT_SWITCHES", "context-switches", "cs"}},
		{unix.PERF_COUNT_SW_CPU_MIGRATIONS, []string{"PERF_COUNT_SW_CPU_MIGRATIONS", "cpu-migrations", "migrations"}},
		{unix.PERF_COUNT_SW_PAGE_FAULTS_MIN, []string{"PERF_COUNT_SW_PAGE_FAULTS_MIN", "minor-faults"}},
		{unix.PERF_COUNT_SW_PAGE_FAULTS_MAJ, []string{"PERF_COUNT_SW_PAGE_FAULTS_MAJ", "major-faults"}},
		{unix.PERF_COUNT_SW_ALIGNMENT_FAULTS, []string{"PERF_COUNT_SW_ALIGNMENT_FAULTS", "alignment-faults"}},
		{unix.PERF_COUNT_SW_EMULATION_FAULTS, []string{"PERF_COUNT_SW_EMULATION_FAULTS", "emulation-faults"}},
		{unix.PERF_COUNT_SW_DUMMY, []string{"PERF_COUNT_SW_DUMMY", "dummy"}},
	}
	for _, e := range sw {
		for _, name := range e.names {
			t.software[name] = builtinEvent{unix.PERF_TYPE_SOFTWARE, e.config}
		}
	}

	add := func(m *[]cacheName, config uint64, names ...string) {
		for _, name := range names {
			*m = append(*m, cacheName{name, config})
		}
	}
	// See evsel.c:evsel__hw_cache
	add(&t.cache, unix.PERF_COUNT_HW_CACHE_L1D, "L1-dcache", "l1-d", "l1d", "L1-data")
	add(&t.cache, unix.PERF_COUNT_HW_CACHE_L1I, "L1-icache", "l1-i", "l1i", "L1-instruction")
	add(&t.cache, unix.PERF_COUNT_HW_CACHE_LL, "LLC", "L2")
	add(&t.cache, unix.PERF_COUNT_HW_CACHE_DTLB, "dTLB", "d-tlb", "Data-TLB")
	add(&t.cache, unix.PERF_COUNT_HW_CACHE_ITLB, "iTLB", "i-tlb", "Instruction-TLB")
	add(&t.cache, unix.PERF_COUNT_HW_CACHE_BPU, "branch", "branches", "bpu", "btb", "bpc")
	add(&t.cache, unix.PERF_COUNT_HW_CACHE_NODE, "node")
	// See evsel.c:evsel__hw_cache_op
	add(&t.cacheOp, unix.PERF_COUNT_HW_CACHE_OP_READ, "load", "loads", "read")
	add(&t.cacheOp, unix.PERF_COUNT_HW_CACHE_OP_WRITE, "store", "stores", "write")
	add(&t.cacheOp, unix.PERF_COUNT_HW_CACHE_OP_PREFETCH, "prefetch", "prefetches", "speculative-read", "speculative-load")
	// See evsel.c:evsel__hw_cache_result
	add(&t.cacheResult, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS, "refs", "Reference", "ops", "access")
	add(&t.cacheResult, unix.PERF_COUNT_HW_CACHE_RESULT_MISS, "misses", "miss")

	// Longer names first so prefix matching is greedy.
	for _, m := range [][]cacheName{t.cache, t.cacheOp, t.cacheResult} {
		sort.SliceStable(m, func(i, j int) bool { return len(m[i].name) > len(m[j].name) })
	}

	r := uint8(1) << unix.PERF_COUNT_HW_CACHE_OP_READ
	w := uint8(1) << unix.PERF_COUNT_HW_CACHE_OP_WRITE
	p := uint8(1) << unix.PERF_COUNT_HW_CACHE_OP_PREFETCH
	t.cacheAllowed = map[uint64]uint8{
		unix.PERF_COUNT_HW_CACHE_L1D:  r | w | p,
		unix.PERF_COUNT_HW_CACHE_L1I:  r | p,
		unix.PERF_COUNT_HW_CACHE_LL:   r | w | p,
		unix.PERF_COUNT_HW_CACHE_DTLB: r | w | p,
		unix.PERF_COUNT_HW_CACHE_ITLB: r,
		unix.PERF_COUNT_HW_CACHE_BPU:  r,
		unix.PERF_COUNT_HW_CACHE_NODE: r | w | p,
	}
	return t
})

func resolveBuiltinEvent(pmu, eventName string) (builtinEvent, bool) {
	t := builtins()

	// All builtin events are either under no PMU or under cpu/.
	if !(pmu == "" || pmu == "cpu") {
		return builtinEvent{}, false
	}

	// CPU events can be used with or without a PMU name.
	if e, ok := t.cpu[eventName]; ok {
		return e, true
	}

	// Software events can only be used with no PMU name.
	if pmu == "" {
		if e, ok := t.software[eventName]; ok {
			return e, true
		}
	}

	return t.resolveCache(eventName)
}

// findCache matches s against a prefix in names, returning the config and the
// remainder after the separating '-'.
func findCache(s string, names []cacheName) (uint64, string, bool) {
	for _, n := range names {
		if s == n.name {
			return n.config, "", true
		}
		if strings.HasPrefix(s, n.name) && s[len(n.name)] == '-' {
			return n.config, s[len(n.name)+1:], true
		}
	}
	return 0, "", false
}

// resolveCache parses a legacy cache event such as "L1-dcache-load-misses".
// See parse-events.c:parse_events__decode_legacy_cache.
func (t *builtinTable) resolveCache(eventName string) (builtinEvent, bool) {
	config, s, ok := findCache(eventName, t.cache)
	if !ok {
		return builtinEvent{}, false
	}
	// Up to two more fields follow: an op and a result, in either order.
	op := uint64(unix.PERF_COUNT_HW_CACHE_OP_READ)
	result := uint64(unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)
	var haveOp, haveResult bool
	for i := 0; i < 2 && s != ""; i++ {
		if !haveOp {
			if op2, s2, ok := findCache(s, t.cacheOp); ok {
				op, s, haveOp = op2, s2, true
				continue
			}
		}
		if !haveResult {
			if result2, s2, ok := findCache(s, t.cacheResult); ok {
				result, s, haveResult = result2, s2, true
				continue
			}
		}
	}
	if s != "" || t.cacheAllowed[config]&(1<<op) == 0 {
		return builtinEvent{}, false
	}
	config |= (op << 8) | (result << 16)
	return builtinEvent{unix.PERF_TYPE_HW_CACHE, config}, true
}
