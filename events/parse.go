// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type rawEvent struct {
	name    string
	pmu     uint32
	config  uint64
	config1 uint64
	config2 uint64
	period  uint64
}

func (e *rawEvent) String() string {
	return e.name
}

func (e *rawEvent) Class() Class {
	return classOf(e.pmu)
}

func (e *rawEvent) SetAttrs(attr *unix.PerfEventAttr) error {
	attr.Type = e.pmu
	attr.Config = e.config
	attr.Ext1 = e.config1
	attr.Ext2 = e.config2
	attr.Sample = e.period // Union of sample_period and sample_freq
	return nil
}

// ParseEvent resolves an event name. It accepts the generic hardware,
// software, and cache event names understood by "perf stat -e" (for example
// "cpu-cycles", "task-clock", "L1-dcache-load-misses"), their kernel constant
// names (for example "PERF_COUNT_SW_TASK_CLOCK"), raw events in the form
// "rNNN" where NNN is hex, and explicit encodings in the form
// "cpu/config=N,config1=N,config2=N,period=N/".
func ParseEvent(name string) (Event, error) {
	pmu, params, err := parsePMUEvent(name)
	if err == errNotPMUEvent {
		if ev, ok := parseRawEvent(name); ok {
			return ev, nil
		}
		// Try as a symbolic event.
		pmu = ""
		params = []eventParam{{k: name, kOnly: true}}
	} else if err != nil {
		return nil, err
	}

	return resolveEvent(name, pmu, params)
}

var errNotPMUEvent = errors.New("not a PMU format event")

// parsePMUEvent parses symbolic PMU event strings in the form pmu/k=v,.../
func parsePMUEvent(name string) (pmu string, params []eventParam, err error) {
	if !(strings.Count(name, "/") == 2 && !strings.HasPrefix(name, "/") && strings.HasSuffix(name, "/")) {
		return "", nil, errNotPMUEvent
	}

	pmu, rest, _ := strings.Cut(name, "/")
	rest = strings.TrimSuffix(rest, "/")
	params, err = parseParamList(rest)
	if err != nil {
		return "", nil, fmt.Errorf("event %q: %w", name, err)
	}
	return pmu, params, nil
}

// parseRawEvent parses perf's "rNNN" raw hardware event syntax.
func parseRawEvent(name string) (*rawEvent, bool) {
	hex, ok := strings.CutPrefix(name, "r")
	if !ok || hex == "" {
		return nil, false
	}
	config, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return nil, false
	}
	return &rawEvent{name: name, pmu: unix.PERF_TYPE_RAW, config: config}, true
}

type eventParam struct {
	k     string
	v     uint64
	kOnly bool // Param may be an event name or k=1
}

// parseParamList parses a comma-separated list of k strings and k=v pairs. Lone
// keys are assumed to have value 1 and are marked as potential names.
func parseParamList(list string) ([]eventParam, error) {
	var params []eventParam
	errf := func(f string, args ...any) error {
		prefix := fmt.Sprintf("error parsing event param list %q", list)
		return fmt.Errorf("%s: "+f, append([]any{prefix}, args...)...)
	}
	for _, s := range strings.Split(list, ",") {
		k, vs, ok := strings.Cut(s, "=")
		if k == "" {
			return nil, errf("missing parameter name in %q", s)
		}
		if !ok {
			params = append(params, eventParam{k, 1, true})
			continue
		}
		// The value can be decimal, hex, or octal.
		v, err := strconv.ParseUint(vs, 0, 64)
		if err != nil {
			return nil, errf("parameter %q not a number", s)
		}
		params = append(params, eventParam{k, v, false})
	}

	return params, nil
}

// paramField returns the rawEvent field set by a parameter of an explicit
// cpu/.../ encoding.
func paramField(e *rawEvent, k string) (*uint64, bool) {
	switch k {
	case "config":
		return &e.config, true
	case "config1":
		return &e.config1, true
	case "config2":
		return &e.config2, true
	case "period":
		return &e.period, true
	}
	return nil, false
}

// resolveEvent resolves an event in the form pmu/param1=N,.../ or a symbolic
// event. Symbolic events will have pmu == "" and a single kOnly param.
func resolveEvent(enc string, pmu string, params []eventParam) (*rawEvent, error) {
	event := rawEvent{name: enc}

	if len(params) == 1 && params[0].kOnly {
		if ev, ok := resolveBuiltinEvent(pmu, params[0].k); ok {
			event.pmu = ev.typ
			event.config = ev.config
			return &event, nil
		}
		if pmu == "" {
			return nil, fmt.Errorf("unknown event %q", enc)
		}
	}

	// Only the core PMU is supported for explicit encodings.
	if pmu != "cpu" {
		return nil, fmt.Errorf("unknown PMU %q", pmu)
	}
	event.pmu = unix.PERF_TYPE_RAW
	for _, param := range params {
		field, ok := paramField(&event, param.k)
		if !ok || param.kOnly {
			return nil, fmt.Errorf("event %q: unknown event or parameter %q", enc, param.k)
		}
		*field = param.v
	}
	return &event, nil
}
