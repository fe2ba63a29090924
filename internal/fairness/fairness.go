// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package fairness implements the secondary fairness tool spec.md 3
// mentions ("the fairness of contended atomic increments across
// cores"), consumed only through its CLI per spec.md 6: nr_tested_cores
// threads contend on a shared array of counters, each incrementing its
// own slot via one of three primitives (locked CAS, plain exchange,
// atomic fetch-add), backing off nr_relax iterations of cpu_relax
// between attempts. The spread across per-thread counts after a fixed
// run is the fairness signal.
package fairness

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudbench/multichase/internal/affinity"
)

// Mode selects the contended-increment primitive under test (spec.md 6:
// "-l|-u|-x").
type Mode int

const (
	// ModeLockedCAS retries a compare-and-swap loop until it wins.
	ModeLockedCAS Mode = iota
	// ModeExchange does a plain atomic exchange (never contends, used as
	// a baseline comparison point).
	ModeExchange
	// ModeFetchAdd does an atomic fetch-add (the fairest primitive,
	// since it never needs a retry loop).
	ModeFetchAdd
)

// cell is one tested core's counter slot, padded to its own cache line
// per "the global sweep counter... is padded to SWEEP_MAX cache lines"
// (spec.md 5).
type cell struct {
	count atomic.Uint64
	_     [56]byte
}

// Result is the per-core increment tally after one run, from which
// callers compute a fairness metric (e.g. max/min ratio or coefficient
// of variation).
type Result struct {
	Counts []uint64
}

// Run launches nrCores threads for duration, each repeatedly incrementing
// its own array slot of nrArrayElts via mode, spinning nrRelax iterations
// of runtime.Gosched (this module's portable cpu_relax analogue; the
// out-of-scope per-arch PAUSE/YIELD primitive spec.md 7 names is an
// external collaborator) between attempts.
func Run(cpus affinity.CPUSet, nrCores, nrArrayElts, nrRelax int, mode Mode, duration time.Duration) (Result, error) {
	cells := make([]cell, nrArrayElts)
	var stop atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < nrCores; i++ {
		slot := i % nrArrayElts
		cpu := -1
		if len(cpus) > 0 {
			cpu = cpus[i%len(cpus)]
		}
		wg.Add(1)
		go func(slot, cpu int) {
			defer wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			if cpu >= 0 {
				_ = affinity.PinSelf(cpu) // best-effort: fairness is still measurable unpinned
			}
			for !stop.Load() {
				increment(&cells[slot].count, mode)
				for r := 0; r < nrRelax; r++ {
					runtime.Gosched()
				}
			}
		}(slot, cpu)
	}

	time.Sleep(duration)
	stop.Store(true)
	wg.Wait()

	counts := make([]uint64, nrArrayElts)
	for i := range cells {
		counts[i] = cells[i].count.Load()
	}
	return Result{Counts: counts}, nil
}

func increment(c *atomic.Uint64, mode Mode) {
	switch mode {
	case ModeFetchAdd:
		c.Add(1)
	case ModeExchange:
		c.Swap(c.Load() + 1)
	default: // ModeLockedCAS
		for {
			old := c.Load()
			if c.CompareAndSwap(old, old+1) {
				return
			}
		}
	}
}
