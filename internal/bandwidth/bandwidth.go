// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package bandwidth implements the streaming-throughput kernels of
// spec.md 4.G: each kernel owns a per-thread load arena and runs a loop
// reporting MiB/s samples through Count: a kernel closes its interval and
// adds one MiB/s value only once the runner has swapped the previous value
// out (Count is zero again). There is no separate sample_no counter.
package bandwidth

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Kernel is a streaming workload selectable via "-l name" (spec.md 4.G).
// Each Run closure knows its own per-iteration traffic volume and reports
// through State.closeInterval itself, since that volume depends on how
// the kernel partitions its arena (halves, thirds, or whole).
type Kernel struct {
	Name string
	Run  func(*State)
}

// State is the per-thread handle a bandwidth kernel operates on: its own
// load arena (sized load_total_memory, allocated and touched by the
// worker after the startup barrier per spec.md 4.G), the shared sample
// counter, and a stop flag that ends the kernel loop (set by the runner
// after its last sample, and by tests).
type State struct {
	Arena []byte
	Count *atomic.Uint64
	Stop  *atomic.Bool

	loops     int64
	startTime int64 // nanoseconds at the start of the open interval; set by NewState and on each close
	nowFn     func() int64
}

// NewState allocates a bandwidth kernel's per-thread handle over arena,
// which the caller has already sized to load_total_memory and touched for
// residency (spec.md 4.G: "allocated in the worker after the start
// barrier").
func NewState(arena []byte, count *atomic.Uint64, stop *atomic.Bool) *State {
	return &State{
		Arena:     arena,
		Count:     count,
		Stop:      stop,
		startTime: time.Now().UnixNano(),
		nowFn:     func() int64 { return time.Now().UnixNano() },
	}
}

func (s *State) stopped() bool {
	return s.Stop != nil && s.Stop.Load()
}

// closeInterval computes MiB/s for the elapsed loops since the last call
// and atomically adds it to Count, per spec.md 4.G's operating contract:
// "compute MiB/s = loops * load_bites * 1e9 / (elapsed_ns * 1<<20)...
// atomically add it to count, reset loops = 0, and restart timing."
// While the previous value is still in Count (not yet swapped out by the
// runner), the interval stays open and loops keep accumulating.
func (s *State) closeInterval(loadBytes int64) {
	if s.Count.Load() != 0 {
		return
	}
	now := s.nowFn()
	elapsed := now - s.startTime
	if elapsed <= 0 || s.loops == 0 {
		s.loops = 0
		s.startTime = now
		return
	}
	mibPerSec := s.loops * loadBytes * 1_000_000_000 / (elapsed * (1 << 20))
	s.Count.Add(uint64(mibPerSec))
	s.loops = 0
	s.startTime = now
}

// Registry lists the bandwidth kernels by name (spec.md 4.G table).
func Registry() []Kernel {
	return []Kernel{
		{Name: "memcpy-libc", Run: memcpyLibc},
		{Name: "memset-libc", Run: memsetLibc},
		{Name: "memsetz-libc", Run: memsetzLibc},
		{Name: "stream-copy", Run: streamCopy},
		{Name: "stream-sum", Run: streamSum},
		{Name: "stream-triad", Run: streamTriad},
	}
}

// Lookup resolves a kernel by name, per "-l name" (spec.md 4.G).
func Lookup(name string) (Kernel, error) {
	for _, k := range Registry() {
		if k.Name == name {
			return k, nil
		}
	}
	return Kernel{}, fmt.Errorf("bandwidth: unknown kernel %q", name)
}
