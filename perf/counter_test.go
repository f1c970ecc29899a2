// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package perf

import (
	"errors"
	"syscall"
	"testing"

	"github.com/aclements/perfharness/events"
)

// openCounter opens a counter or skips the test if this machine doesn't allow
// perf events at all (containers, high perf_event_paranoid, no PMU).
func openCounter(t *testing.T, target Target, ev events.Event) *Counter {
	t.Helper()
	c, err := OpenCounter(target, ev)
	if err != nil {
		for _, errno := range []error{syscall.EACCES, syscall.EPERM, syscall.ENOENT, syscall.EOPNOTSUPP, syscall.ENODEV} {
			if errors.Is(err, errno) {
				t.Skip("perf events unavailable:", err)
			}
		}
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenOne(t *testing.T) {
	c := openCounter(t, TargetThisGoroutine, events.EventTaskClock)

	doRead := func(min Count) Count {
		t.Helper()
		count, err := c.ReadOne()
		if err != nil {
			t.Fatal("read failed:", err)
		}
		t.Logf("read %+v", count)
		checkCount(t, count, min)
		return count
	}

	c1 := doRead(Count{})
	if c1.RawValue != 0 || c1.TimeEnabled != 0 {
		t.Fatal("counter is non-zero before starting")
	}

	t.Log("starting counter")
	c.Start()
	spin()
	c2 := doRead(c1)
	if c2.RawValue == 0 {
		t.Fatal("task-clock did not advance while running")
	}

	t.Log("stopping counter")
	c.Stop()
	c3 := doRead(c2)
	c4 := doRead(c2)
	if c3 != c4 {
		t.Fatal("counter changed while stopped")
	}
}

func TestReset(t *testing.T) {
	c := openCounter(t, TargetInherit, events.EventTaskClock)

	c.Start()
	spin()
	c.Stop()
	before, err := c.ReadOne()
	if err != nil {
		t.Fatal(err)
	}
	if before.RawValue == 0 {
		t.Fatal("task-clock did not advance while running")
	}

	c.Reset()
	after, err := c.ReadOne()
	if err != nil {
		t.Fatal(err)
	}
	if after.RawValue != 0 {
		t.Errorf("RawValue after reset = %d, want 0", after.RawValue)
	}
	// Reset leaves the timers alone.
	if after.TimeEnabled != before.TimeEnabled {
		t.Errorf("TimeEnabled changed across reset: %d -> %d", before.TimeEnabled, after.TimeEnabled)
	}
}

func TestReadClosed(t *testing.T) {
	c := openCounter(t, TargetThisGoroutine, events.EventTaskClock)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReadOne(); err == nil {
		t.Fatal("read of closed counter succeeded")
	}
}

func TestMultiplexedSince(t *testing.T) {
	base := Count{RawValue: 5, TimeEnabled: 100, TimeRunning: 60}
	for _, tc := range []struct {
		c    Count
		want bool
	}{
		// Multiplexed before base but fully scheduled since.
		{Count{RawValue: 50, TimeEnabled: 150, TimeRunning: 110}, false},
		{Count{RawValue: 50, TimeEnabled: 150, TimeRunning: 90}, true},
		{base, false},
	} {
		if got := tc.c.MultiplexedSince(base); got != tc.want {
			t.Errorf("%+v since %+v: MultiplexedSince = %v, want %v", tc.c, base, got, tc.want)
		}
	}
}

var sink int

func spin() {
	for i := 0; i < 1e6; i++ {
		sink += i
	}
}

func checkCount(t *testing.T, count Count, min Count) {
	t.Helper()
	if count.TimeRunning > count.TimeEnabled {
		t.Fatal("TimeRunning > TimeEnabled")
	}
	if count.RawValue < min.RawValue {
		t.Fatal("RawValue decreased")
	}
	if count.TimeEnabled < min.TimeEnabled {
		t.Fatal("TimeEnabled decreased")
	}
	if count.TimeRunning < min.TimeRunning {
		t.Fatal("TimeRunning decreased")
	}
}
