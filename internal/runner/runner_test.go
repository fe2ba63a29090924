// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package runner

import (
	"testing"
	"time"

	"github.com/cloudbench/multichase/internal/bandwidth"
	"github.com/cloudbench/multichase/internal/chase"
	"github.com/cloudbench/multichase/internal/mixer"
)

func TestBarrierReleasesAllParties(t *testing.T) {
	const n = 5
	b := newBarrier(n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			b.Arrive()
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("barrier did not release all parties")
		}
	}
}

func TestRunChaseOnly(t *testing.T) {
	w, err := chase.ParseWorkload("simple")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	const stride = 64
	mix := mixer.Build(mixer.SlotCount(1, 1), int(stride/8), 1)
	res, err := Run(Params{
		ChaseWorkload: w,
		HasChase:      true,
		Build: chase.BuildParams{
			Arena:       make([]byte, 1<<16),
			TotalMemory: 1 << 16,
			Stride:      stride,
			TLBLocality: 4096,
			Mixer:       mix,
			Seed:        1,
		},
		NrSamples:      2,
		SampleInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Samples) != 2 {
		t.Fatalf("len(Samples) = %d, want 2", len(res.Samples))
	}
	for _, s := range res.Samples {
		if s.LatencyNsPerOp <= 0 {
			t.Errorf("LatencyNsPerOp = %v, want > 0", s.LatencyNsPerOp)
		}
	}
}

// TestRunMultiThreadChaseBuildsDisjointCycles is a regression test for the
// runner handing every "-t N" chase thread the same single cycle built at
// mixerIdx=0: each thread must get its own cycle at mixer_idx=i*parallelism+par
// (spec.md 4.I step 5), which this only exercises indirectly (a shared,
// colliding cycle would corrupt next-pointers and likely show up as a stuck
// or garbage latency reading instead of a clean positive one).
func TestRunMultiThreadChaseBuildsDisjointCycles(t *testing.T) {
	w, err := chase.ParseWorkload("simple")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	const stride = 64
	const nrThreads = 4
	mix := mixer.Build(mixer.SlotCount(nrThreads, 1), int(stride/8), 1)
	res, err := Run(Params{
		ChaseWorkload:  w,
		HasChase:       true,
		NrChaseThreads: nrThreads,
		Build: chase.BuildParams{
			Arena:       make([]byte, 1<<16),
			TotalMemory: 1 << 16,
			Stride:      stride,
			TLBLocality: 4096,
			Mixer:       mix,
			Seed:        1,
		},
		NrSamples:      2,
		SampleInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range res.Samples {
		if s.LatencyNsPerOp <= 0 {
			t.Errorf("LatencyNsPerOp = %v, want > 0", s.LatencyNsPerOp)
		}
	}
}

// TestRunMultiThreadChaseExceedsMixerIndices is the flip side: spec.md 7a's
// "too many threads for stride" must be reported as a configuration error,
// not silently produce colliding cycles.
func TestRunMultiThreadChaseExceedsMixerIndices(t *testing.T) {
	w, err := chase.ParseWorkload("simple")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	const stride = 64
	mix := mixer.Build(mixer.SlotCount(1, 1), int(stride/8), 1) // NrMixerIndices=8
	_, err = Run(Params{
		ChaseWorkload:  w,
		HasChase:       true,
		NrChaseThreads: 16, // exceeds the 8 disjoint mixer indices the stride provides
		Build: chase.BuildParams{
			Arena:       make([]byte, 1<<16),
			TotalMemory: 1 << 16,
			Stride:      stride,
			TLBLocality: 4096,
			Mixer:       mix,
			Seed:        1,
		},
		NrSamples:      1,
		SampleInterval: 5 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Run: want error for too many chase threads for stride, got nil")
	}
}

// TestRunParallelNUsesDistinctHeads is a regression test for the runner
// leaving Heads[1..n-1] at their zero value: ParallelN's extra heads must
// each walk their own cycle, not sit in a 0->0 self-loop reading element 0's
// zeroed non-pointer cell.
func TestRunParallelNUsesDistinctHeads(t *testing.T) {
	w, err := chase.ParseWorkload("parallel4")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	const stride = 64
	mix := mixer.Build(mixer.SlotCount(1, 4), int(stride/8), 1)
	res, err := Run(Params{
		ChaseWorkload: w,
		HasChase:      true,
		Build: chase.BuildParams{
			Arena:       make([]byte, 1<<16),
			TotalMemory: 1 << 16,
			Stride:      stride,
			TLBLocality: 4096,
			Mixer:       mix,
			Seed:        1,
		},
		NrSamples:      2,
		SampleInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range res.Samples {
		if s.LatencyNsPerOp <= 0 {
			t.Errorf("LatencyNsPerOp = %v, want > 0", s.LatencyNsPerOp)
		}
	}
}

// TestRunCritWordPlantsSecondaryWord and TestRunCritWord2PlantsSecondaryCycle
// are regression tests for the runner never invoking chase.PlantCritWord /
// PlantCritWord2 before launching the critword/critword2 kernels.
func TestRunCritWordPlantsSecondaryWord(t *testing.T) {
	w, err := chase.ParseWorkload("critword:8")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	const stride = 64
	mix := mixer.Build(mixer.SlotCount(1, 1), int(stride/8), 1)
	res, err := Run(Params{
		ChaseWorkload: w,
		HasChase:      true,
		Build: chase.BuildParams{
			Arena:       make([]byte, 1<<16),
			TotalMemory: 1 << 16,
			Stride:      stride,
			TLBLocality: 4096,
			Mixer:       mix,
			Seed:        1,
		},
		NrSamples:      2,
		SampleInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range res.Samples {
		if s.LatencyNsPerOp <= 0 {
			t.Errorf("LatencyNsPerOp = %v, want > 0", s.LatencyNsPerOp)
		}
	}
}

func TestRunCritWord2PlantsSecondaryCycle(t *testing.T) {
	w, err := chase.ParseWorkload("critword2:8")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	const stride = 64
	mix := mixer.Build(mixer.SlotCount(1, 1), int(stride/8), 1)
	res, err := Run(Params{
		ChaseWorkload: w,
		HasChase:      true,
		Build: chase.BuildParams{
			Arena:       make([]byte, 1<<16),
			TotalMemory: 1 << 16,
			Stride:      stride,
			TLBLocality: 4096,
			Mixer:       mix,
			Seed:        1,
		},
		NrSamples:      2,
		SampleInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range res.Samples {
		if s.LatencyNsPerOp <= 0 {
			t.Errorf("LatencyNsPerOp = %v, want > 0", s.LatencyNsPerOp)
		}
	}
}

func TestRunBandwidthOnly(t *testing.T) {
	k, err := bandwidth.Lookup("stream-sum")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	res, err := Run(Params{
		LoadKernel:     &k,
		NrBandwidth:    2,
		LoadArenaSize:  1 << 16,
		NrSamples:      2,
		SampleInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Samples) != 2 {
		t.Fatalf("len(Samples) = %d, want 2 (nr_samples, first discarded)", len(res.Samples))
	}
	for _, s := range res.Samples {
		if s.LatencyNsPerOp != 0 {
			t.Errorf("LatencyNsPerOp = %v, want 0 for a bandwidth-only run", s.LatencyNsPerOp)
		}
	}
}

func TestReduceMinMeanGeomean(t *testing.T) {
	samples := []float64{2, 4, 8}
	if got := Reduce(samples, false, false); got != 2 {
		t.Errorf("min = %v, want 2", got)
	}
	if got := Reduce(samples, true, false); got != 14.0/3.0 {
		t.Errorf("mean = %v, want %v", got, 14.0/3.0)
	}
	geo := Reduce(samples, true, true)
	if geo <= 0 || geo > 8 {
		t.Errorf("geomean = %v, want in (0,8]", geo)
	}
}

func TestReduceEmpty(t *testing.T) {
	if got := Reduce(nil, false, false); got != 0 {
		t.Errorf("Reduce(nil) = %v, want 0", got)
	}
}
