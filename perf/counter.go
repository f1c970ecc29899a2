// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package perf opens and reads Linux perf_event counters.
package perf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/aclements/perfharness/events"
)

// Target specifies what goroutine, thread, or CPU a [Counter] should monitor.
type Target interface {
	pidCPU() (pid, cpu int)
	attrBits() uint64
	open()
	close()
}

type targetThisGoroutine struct{}

func (targetThisGoroutine) pidCPU() (pid, cpu int) { return 0, -1 }
func (targetThisGoroutine) attrBits() uint64       { return 0 }
func (targetThisGoroutine) open()                  { runtime.LockOSThread() }
func (targetThisGoroutine) close()                 { runtime.UnlockOSThread() }

type targetInherit struct{ targetThisGoroutine }

func (targetInherit) attrBits() uint64 { return unix.PerfBitInherit }

var (
	// TargetThisGoroutine monitors the calling goroutine. This will call
	// [runtime.LockOSThread] on Open and [runtime.UnlockOSThread] on Close.
	TargetThisGoroutine Target = targetThisGoroutine{}

	// TargetInherit monitors the calling goroutine's OS thread and every
	// thread or process that thread creates after the counter is opened.
	// Like TargetThisGoroutine, it locks the goroutine to its thread until
	// Close.
	//
	// A locked goroutine's thread does not create the Go runtime's own
	// threads: new Ms are started from a separate template thread, so GC
	// workers and other runtime threads are generally not counted. Threads
	// created directly by the monitored thread, such as fork/exec children
	// or threads started by C code, are.
	TargetInherit Target = targetInherit{}
)

// ErrShortRead is returned by [Counter.ReadOne] when the kernel returned
// fewer bytes than the read format requires.
var ErrShortRead = errors.New("short read from perf event")

// A Counter reports the number of times an [events.Event] occurred.
type Counter struct {
	target Target

	f *os.File

	running bool

	readBuf [3 * 8]byte
}

// OpenCounter returns a new [Counter] that reads values for ev on the given
// [Target]. Callers are expected to call [Counter.Close] when done with this
// Counter.
//
// The counter is initially not running. Call [Counter.Start] to start it.
func OpenCounter(target Target, ev events.Event) (*Counter, error) {
	pid, cpu := target.pidCPU()

	attr := unix.PerfEventAttr{}
	attr.Size = uint32(unsafe.Sizeof(attr))
	if err := ev.SetAttrs(&attr); err != nil {
		return nil, err
	}
	attr.Read_format = unix.PERF_FORMAT_TOTAL_TIME_ENABLED |
		unix.PERF_FORMAT_TOTAL_TIME_RUNNING
	attr.Bits = unix.PerfBitDisabled | target.attrBits()

	target.open()
	fd, err := unix.PerfEventOpen(&attr, pid, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		target.close()
		if errors.Is(err, syscall.EACCES) {
			const path = "/proc/sys/kernel/perf_event_paranoid"
			data, err2 := os.ReadFile(path)
			data = bytes.TrimSpace(data)
			if val, err3 := strconv.Atoi(string(data)); err2 != nil || err3 != nil || val > 0 {
				// We can't read it, or it's set to > 0.
				err = fmt.Errorf("%w (consider: echo 0 | sudo tee %s)", err, path)
			}
		}
		return nil, fmt.Errorf("opening %s: %w", ev, err)
	}
	return &Counter{target: target, f: os.NewFile(uintptr(fd), "<perf-event>")}, nil
}

// Close closes this counter and unlocks the goroutine from the OS thread.
func (c *Counter) Close() error {
	if c == nil || c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	c.target.close()
	c.target = nil
	return err
}

// Start the counter.
func (c *Counter) Start() {
	if c == nil || c.running {
		return
	}
	c.running = true
	c.ioctl(unix.PERF_EVENT_IOC_ENABLE)
}

// Stop the counter.
func (c *Counter) Stop() {
	if c == nil || !c.running {
		return
	}
	c.ioctl(unix.PERF_EVENT_IOC_DISABLE)
	c.running = false
}

// Reset zeroes the counter's value. It does not reset TimeEnabled or
// TimeRunning.
func (c *Counter) Reset() {
	if c == nil {
		return
	}
	c.ioctl(unix.PERF_EVENT_IOC_RESET)
}

func (c *Counter) ioctl(req uint) {
	if c.f == nil {
		return
	}
	unix.IoctlSetInt(int(c.f.Fd()), req, 0)
}

// Count is the value of a Counter.
type Count struct {
	RawValue uint64 // The number of events while this counter was running.

	// Normally, TimeEnabled == TimeRunning. However, if more counters are
	// running than the hardware can support, events will be multiplexed onto
	// the hardware. In that case, TimeRunning < TimeEnabled, and the raw
	// counter value covers only part of the time the counter was enabled.
	// Both times accumulate from open and are not cleared by Reset.

	TimeEnabled uint64 // Total time the Counter was started.
	TimeRunning uint64 // Total time the Counter was actually counting.
}

// MultiplexedSince reports whether the counter shared the hardware with other
// events at some point between the reads of base and c, so that RawValue
// does not cover the whole time it was enabled in that span.
func (c Count) MultiplexedSince(base Count) bool {
	return c.TimeEnabled-base.TimeEnabled != c.TimeRunning-base.TimeRunning
}

// ReadOne returns the current value of c.
func (c *Counter) ReadOne() (Count, error) {
	if c == nil {
		return Count{}, nil
	}
	if c.f == nil {
		return Count{}, fmt.Errorf("Counter is closed")
	}

	buf := c.readBuf[:]
	n, err := c.f.Read(buf)
	if err != nil {
		return Count{}, err
	}
	if n < len(buf) {
		return Count{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRead, n, len(buf))
	}
	return Count{
		RawValue:    binary.NativeEndian.Uint64(buf[0:]),
		TimeEnabled: binary.NativeEndian.Uint64(buf[8:]),
		TimeRunning: binary.NativeEndian.Uint64(buf[16:]),
	}, nil
}
