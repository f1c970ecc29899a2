// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workload is an allocation-heavy garbage collection benchmark with
// periodic forced collections.
package workload

import (
	"errors"
	"runtime"
)

// Config sizes a run.
type Config struct {
	// AllocBytes is the total garbage allocated by a run.
	AllocBytes int64
	// ObjectSize is the size of each allocation.
	ObjectSize int
	// LiveBytes is retained for the whole run so each collection has a heap
	// to mark.
	LiveBytes int64
	// CollectEvery forces a collection after this many bytes. Zero disables
	// forced collections.
	CollectEvery int64
}

// DefaultConfig allocates 64 MiB in 4 KiB objects over 8 MiB of live data,
// forcing a collection every 16 MiB.
var DefaultConfig = Config{
	AllocBytes:   64 << 20,
	ObjectSize:   4 << 10,
	LiveBytes:    8 << 20,
	CollectEvery: 16 << 20,
}

// Validate reports a configuration that cannot run.
func (c Config) Validate() error {
	switch {
	case c.ObjectSize <= 0:
		return errors.New("object size must be positive")
	case c.AllocBytes < 0, c.LiveBytes < 0, c.CollectEvery < 0:
		return errors.New("sizes must not be negative")
	}
	return nil
}

// A Pauser brackets the forced collections. *harness.Session implements it.
type Pauser interface {
	STWBegin() error
	STWEnd() error
}

// Stats describes a completed run.
type Stats struct {
	Allocations int
	Collections int
}

var sink []byte

// Run allocates cfg.AllocBytes of garbage. Each forced collection is
// bracketed by p.STWBegin and p.STWEnd; p may be nil.
func Run(cfg Config, p Pauser) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}

	live := make([][]byte, 0, cfg.LiveBytes/int64(cfg.ObjectSize)+1)
	for n := int64(0); n < cfg.LiveBytes; n += int64(cfg.ObjectSize) {
		live = append(live, make([]byte, cfg.ObjectSize))
	}

	var st Stats
	var sinceGC int64
	for n := int64(0); n < cfg.AllocBytes; n += int64(cfg.ObjectSize) {
		sink = make([]byte, cfg.ObjectSize)
		st.Allocations++
		sinceGC += int64(cfg.ObjectSize)
		if cfg.CollectEvery > 0 && sinceGC >= cfg.CollectEvery {
			sinceGC = 0
			if err := collect(p); err != nil {
				return st, err
			}
			st.Collections++
		}
	}
	runtime.KeepAlive(live)
	return st, nil
}

func collect(p Pauser) error {
	if p == nil {
		runtime.GC()
		return nil
	}
	if err := p.STWBegin(); err != nil {
		return err
	}
	runtime.GC()
	return p.STWEnd()
}
