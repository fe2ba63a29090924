// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package pingpong implements the secondary ping-pong tool spec.md 3/7
// mentions ("secondary tools measure inter-core cache-line ping-pong
// latency") and treats as an external collaborator consumed only
// through its CLI in spec.md 6: two pinned threads alternate ownership
// of a single shared cache line via atomic handoff, and the tool sweeps
// over core pairs reporting the round-trip time per pair.
package pingpong

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cloudbench/multichase/internal/affinity"
)

// cacheLine is padded to avoid any neighboring allocation sharing the
// line under test, mirroring the chase/bandwidth packages' false-sharing
// discipline.
type cacheLine struct {
	turn atomic.Uint64
	_    [56]byte
}

// Result is one core pair's measured round-trip.
type Result struct {
	CoreA, CoreB int
	NsPerRoundTrip float64
}

// Sweep runs one ping-pong trial for each core pair (0,i) for i in
// [1,sweepMax], each for timeSlice, pinning the two participating
// goroutines to coreA and coreB via cpus.
func Sweep(cpus affinity.CPUSet, sweepMax int, timeSlice time.Duration) ([]Result, error) {
	if len(cpus) < 2 {
		return nil, fmt.Errorf("pingpong: need at least 2 CPUs, have %d", len(cpus))
	}
	max := sweepMax
	if max > len(cpus)-1 {
		max = len(cpus) - 1
	}

	var results []Result
	for i := 1; i <= max; i++ {
		coreA, coreB := cpus[0], cpus[i]
		rt, err := trial(coreA, coreB, timeSlice)
		if err != nil {
			return nil, fmt.Errorf("pingpong: trial (core %d, core %d): %w", coreA, coreB, err)
		}
		results = append(results, Result{CoreA: coreA, CoreB: coreB, NsPerRoundTrip: rt})
	}
	return results, nil
}

func trial(coreA, coreB int, timeSlice time.Duration) (float64, error) {
	var line cacheLine
	var stop atomic.Bool
	var roundTrips atomic.Uint64
	done := make(chan error, 2)

	go func() {
		done <- pingThread(coreA, &line, &stop, 0, 1, nil)
	}()
	go func() {
		done <- pingThread(coreB, &line, &stop, 1, 0, &roundTrips)
	}()

	time.Sleep(timeSlice)
	stop.Store(true)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			return 0, err
		}
	}

	n := roundTrips.Load()
	if n == 0 {
		return 0, fmt.Errorf("pingpong: no round trips completed in %s", timeSlice)
	}
	return float64(timeSlice.Nanoseconds()) / float64(n), nil
}

// pingThread pins itself to cpu, then busy-waits for the line's turn to
// equal mine, hands it to next, and (if counter is non-nil) counts one
// completed round trip per handoff it makes.
func pingThread(cpu int, line *cacheLine, stop *atomic.Bool, mine, next uint64, counter *atomic.Uint64) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := affinity.PinSelf(cpu); err != nil {
		return fmt.Errorf("pin to cpu %d: %w", cpu, err)
	}
	for !stop.Load() {
		for line.turn.Load() != mine {
			if stop.Load() {
				return nil
			}
		}
		line.turn.Store(next)
		if counter != nil {
			counter.Add(1)
		}
	}
	return nil
}
