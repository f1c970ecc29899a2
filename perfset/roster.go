// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package perfset

import (
	"fmt"

	"github.com/aclements/perfharness/events"
)

// A Descriptor names one counter in a roster. Name is the key the counter's
// deltas are reported under.
type Descriptor struct {
	Name  string
	Event events.Event
}

// Class returns the event class of the counter.
func (d Descriptor) Class() events.Class {
	return d.Event.Class()
}

// DefaultEvents is the roster used when none is configured: one software and
// one hardware counter.
var DefaultEvents = []string{"task-clock", "cpu-cycles"}

// ParseRoster resolves each event name with [events.ParseEvent]. Each counter
// is reported under the name it was given. Names must be unique.
func ParseRoster(names []string) ([]Descriptor, error) {
	seen := make(map[string]bool, len(names))
	roster := make([]Descriptor, 0, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("duplicate counter %q", name)
		}
		seen[name] = true
		ev, err := events.ParseEvent(name)
		if err != nil {
			return nil, err
		}
		roster = append(roster, Descriptor{Name: name, Event: ev})
	}
	return roster, nil
}
