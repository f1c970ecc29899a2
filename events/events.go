// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package events resolves performance event names into perf_event_attr
// configurations.
package events

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// An Event represents a performance event that perf can count.
type Event interface {
	// String returns the string representation of this event, preferably as the
	// name used by "perf record -e".
	String() string

	// Class reports whether this is a software, hardware, cache, or raw event.
	Class() Class

	// SetAttrs sets the attributes for this event in the [unix.PerfEventAttr]
	// struct.
	SetAttrs(*unix.PerfEventAttr) error
}

// A Class is the broad kind of an [Event], derived from its perf type.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassSoftware
	ClassHardware
	ClassHWCache
	ClassRaw
)

func (c Class) String() string {
	switch c {
	case ClassSoftware:
		return "software"
	case ClassHardware:
		return "hardware"
	case ClassHWCache:
		return "hw-cache"
	case ClassRaw:
		return "raw"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

func classOf(typ uint32) Class {
	switch typ {
	case unix.PERF_TYPE_SOFTWARE:
		return ClassSoftware
	case unix.PERF_TYPE_HARDWARE:
		return ClassHardware
	case unix.PERF_TYPE_HW_CACHE:
		return ClassHWCache
	case unix.PERF_TYPE_RAW:
		return ClassRaw
	}
	return ClassUnknown
}

type eventBasic struct {
	name   string
	typ    uint32
	config uint64
}

func (e eventBasic) SetAttrs(a *unix.PerfEventAttr) error {
	a.Type = e.typ
	a.Config = e.config
	return nil
}

func (e eventBasic) String() string {
	return e.name
}

func (e eventBasic) Class() Class {
	return classOf(e.typ)
}

var (
	// Hardware events
	EventCPUCycles       = eventBasic{"cpu-cycles", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES}
	EventInstructions    = eventBasic{"instructions", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS}
	EventCacheReferences = eventBasic{"cache-references", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_REFERENCES}
	EventCacheMisses     = eventBasic{"cache-misses", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_MISSES}
	EventBranches        = eventBasic{"branches", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS}
	EventBranchesMisses  = eventBasic{"branch-misses", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_MISSES}
)

var (
	// Software events
	EventCPUClock        = eventBasic{"cpu-clock", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CPU_CLOCK}
	EventTaskClock       = eventBasic{"task-clock", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_TASK_CLOCK}
	EventPageFaults      = eventBasic{"page-faults", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_PAGE_FAULTS}
	EventContextSwitches = eventBasic{"context-switches", unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CONTEXT_SWITCHES}
)
