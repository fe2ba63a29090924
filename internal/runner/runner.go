// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package runner implements spec.md 4.I: thread launch, the startup
// barrier, the sampling loop, and loaded-latency sequencing (one chase
// thread racing against N bandwidth threads). It is the only package
// that sequences internal/chase and internal/bandwidth kernels against
// real OS threads and wall-clock sampling.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudbench/multichase/internal/affinity"
	"github.com/cloudbench/multichase/internal/arena"
	"github.com/cloudbench/multichase/internal/bandwidth"
	"github.com/cloudbench/multichase/internal/chase"
)

// avoidFalseSharing is AVOID_FALSE_SHARING from spec.md 5: per-thread
// records are padded to this many bytes so adjacent threads' counters
// never share a cache line.
const avoidFalseSharing = 1024

// record is one worker's padded shared state: the sampler reads Count via
// atomic Swap(0); the worker only ever Adds to it.
type record struct {
	Count atomic.Uint64
	Stop  atomic.Bool
	_     [avoidFalseSharing - 16]byte
}

// Params configures one runner invocation. A plain chase run leaves
// NrBandwidth at 0; a plain bandwidth run leaves HasChase false; setting
// both (HasChase with NrBandwidth > 0) is the loaded-latency combination
// of spec.md's S6 scenario: one chase thread racing N bandwidth threads.
type Params struct {
	ChaseWorkload  chase.Workload
	HasChase       bool
	NrChaseThreads int // number of chase threads (0 means 1); used as given in loaded-latency runs too, where cmd/multichase passes 1

	LoadKernel  *bandwidth.Kernel
	NrBandwidth int

	Build         chase.BuildParams
	LoadArenaSize int64 // size of each bandwidth thread's private arena
	ArenaPageSize int64
	UseTHP        bool
	NUMAWeights   arena.NUMABinder

	// PostBuild, if set, runs once on the built chase graph before the
	// startup barrier releases any worker -- the hook internal/branchchase
	// uses to rewrite the cycle into machine code (spec.md 4.H) and report
	// back the real entry offset the kernel should start from.
	PostBuild func(arena []byte, head int64) (newHead int64, err error)

	// FlushArena, if non-empty, is written to once per sample interval
	// (spec.md 4.I step 3: "allocate flush arena of cache_flush_size bytes
	// and touch it") to evict the chase/bandwidth working set from cache
	// between samples.
	FlushArena []byte

	NrSamples      int
	SampleInterval time.Duration
	UseAffinity    bool
	CPUs           affinity.CPUSet

	Logger *slog.Logger
}

// Sample is one retained interval's worth of readings: the chase threads'
// counts converted to ns/op, and the summed bandwidth across all
// bandwidth threads in MiB/s.
type Sample struct {
	LatencyNsPerOp float64 // 0 if no chase thread is running
	BandwidthMiBps float64 // 0 if no bandwidth thread is running
}

// Results is the outcome of a full run: the discarded-first-sample
// sequence of retained Samples, ready for min/mean/geomean reduction.
type Results struct {
	Samples []Sample
}

func (p *Params) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run launches the configured threads, waits for the startup barrier,
// samples nr_samples+1 intervals (discarding the first per spec.md 8
// property 7), then stops every worker and returns.
func Run(p Params) (Results, error) {
	nrChase := 0
	if p.HasChase {
		nrChase = p.NrChaseThreads
		if nrChase == 0 {
			nrChase = 1
		}
	}
	nrBand := p.NrBandwidth
	nrWorkers := nrChase + nrBand
	if nrWorkers == 0 {
		return Results{}, fmt.Errorf("runner: no threads configured")
	}

	var g *chase.Graph
	var chaseHeads [][]int64 // chaseHeads[i] holds thread i's Heads[0:parallelism]
	if nrChase > 0 {
		heads, graph, err := buildChaseCycles(p, nrChase)
		if err != nil {
			return Results{}, err
		}
		chaseHeads, g = heads, graph
	}

	// Pre-barrier setup: allocate every bandwidth thread's private arena
	// concurrently (spec.md 4.G: "allocated in the worker... sized
	// load_total_memory, touched to ensure residency"). This is the one
	// genuinely concurrent, fallible, pre-barrier step -- OS resource
	// errors here (spec.md 7b) abort the run before any kernel thread is
	// launched, so golang.org/x/sync/errgroup's first-error propagation
	// applies cleanly; the steady-state kernels never touch errgroup or
	// channels per spec.md 5.
	bandRegions := make([]*arena.Region, nrBand)
	if nrBand > 0 {
		eg, _ := errgroup.WithContext(context.Background())
		for j := 0; j < nrBand; j++ {
			j := j
			eg.Go(func() error {
				region, err := arena.Alloc(arena.Config{
					Size:        p.LoadArenaSize,
					PageSize:    p.ArenaPageSize,
					UseTHP:      p.UseTHP,
					NUMAWeights: p.NUMAWeights,
				})
				if err != nil {
					return fmt.Errorf("runner: allocate bandwidth arena %d: %w", j, err)
				}
				bandRegions[j] = region
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return Results{}, err
		}
	}

	b := newBarrier(nrWorkers + 1)
	records := make([]record, nrWorkers)
	var wg sync.WaitGroup

	cpu := func(i int) (int, error) {
		if !p.UseAffinity || len(p.CPUs) == 0 {
			return -1, nil
		}
		return p.CPUs.Nth(i % len(p.CPUs))
	}

	for i := 0; i < nrChase; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			runtime.LockOSThread()
			if c, err := cpu(i); err == nil && c >= 0 {
				if perr := affinity.PinSelf(c); perr != nil {
					p.logger().Warn("pin chase thread failed", "thread", i, "cpu", c, "err", perr)
				}
			}
			st := &chase.State{Arena: g.Arena, Count: &records[i].Count, Stop: &records[i].Stop}
			copy(st.Heads[:len(chaseHeads[i])], chaseHeads[i])
			b.Arrive()
			p.ChaseWorkload.Run(st)
		}()
	}

	for j := 0; j < nrBand; j++ {
		idx := nrChase + j
		region := bandRegions[j]
		wg.Add(1)
		go func() {
			defer wg.Done()
			runtime.LockOSThread()
			if c, err := cpu(idx); err == nil && c >= 0 {
				if perr := affinity.PinSelf(c); perr != nil {
					p.logger().Warn("pin bandwidth thread failed", "thread", idx, "cpu", c, "err", perr)
				}
			}
			st := bandwidth.NewState(region.Bytes, &records[idx].Count, &records[idx].Stop)
			b.Arrive()
			p.LoadKernel.Run(st)
		}()
	}

	b.Arrive() // sampler joins the barrier last, releasing every worker

	samples := make([]Sample, 0, p.NrSamples)
	interval := p.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}
	last := time.Now()
	for i := 0; i <= p.NrSamples; i++ {
		time.Sleep(interval)
		touchFlushArena(p.FlushArena)
		// spec.md 4.I step 6: "take a wall-clock timestamp delta" rather
		// than trusting the nominal interval -- time.Sleep only
		// guarantees sleeping at least that long, and the overshoot
		// would otherwise bias ns_per_op low.
		now := time.Now()
		elapsed := now.Sub(last)
		last = now
		s := collect(records, nrChase, nrBand, elapsed)
		if i == 0 {
			continue // spec.md 8 property 7: discard the first sample
		}
		samples = append(samples, s)
	}

	for i := range records {
		records[i].Stop.Store(true)
	}
	wg.Wait()

	return Results{Samples: samples}, nil
}

// buildChaseCycles builds one independent cycle per chase thread and,
// for "parallelN" workloads, NrParallel independent cycles per thread,
// each over its own disjoint mixer slot mixer_idx = i*parallelism+par
// (spec.md 4.I step 5: "build its own cycle(s) using mixer_idx =
// i*parallelism+par"). It then applies whatever one-time rewrite the
// selected workload needs -- branch-chase machine-code emission via
// PostBuild, or critword/critword2 secondary-pointer planting -- before
// any worker starts, since both rewrites assume nobody else is walking
// the cycle yet.
func buildChaseCycles(p Params, nrChase int) ([][]int64, *chase.Graph, error) {
	parallelism := p.ChaseWorkload.NrParallel
	if parallelism < 1 {
		parallelism = 1
	}

	nrMixerIndices := 0
	if p.Build.Mixer != nil {
		nrMixerIndices = p.Build.Mixer.NrMixerIndices
	}
	if need := nrChase * parallelism; need > nrMixerIndices {
		return nil, nil, fmt.Errorf("runner: %d chase thread(s) x %d parallel chase(s) needs %d disjoint mixer indices, stride only provides %d (too many threads for stride)", nrChase, parallelism, need, nrMixerIndices)
	}

	var g *chase.Graph
	heads := make([][]int64, nrChase)
	for i := 0; i < nrChase; i++ {
		threadHeads := make([]int64, parallelism)
		for par := 0; par < parallelism; par++ {
			mixerIdx := i*parallelism + par
			head, graph, err := chase.Build(p.Build, mixerIdx)
			if err != nil {
				return nil, nil, fmt.Errorf("runner: build chase graph (thread %d, parallel %d): %w", i, par, err)
			}
			g = graph
			threadHeads[par] = head
		}
		heads[i] = threadHeads
	}

	switch p.ChaseWorkload.Name {
	case "critword":
		for i := range heads {
			cycleLen := chase.CycleLen(g.Arena, heads[i][0])
			chase.PlantCritWord(g.Arena, heads[i][0], cycleLen, p.ChaseWorkload.CritOffset)
		}
	case "critword2":
		for i := range heads {
			cycleLen := chase.CycleLen(g.Arena, heads[i][0])
			chase.PlantCritWord2(g.Arena, heads[i][0], cycleLen, p.ChaseWorkload.CritOffset)
		}
	}

	if p.PostBuild != nil {
		for i := range heads {
			newHead, err := p.PostBuild(g.Arena, heads[i][0])
			if err != nil {
				return nil, nil, fmt.Errorf("runner: post-build hook (thread %d): %w", i, err)
			}
			heads[i][0] = newHead
		}
	}

	return heads, g, nil
}

// touchFlushArena writes a byte every cache-line width across buf, evicting
// the chase/bandwidth working set from cache before the next interval is
// sampled (spec.md 4.I step 3).
func touchFlushArena(buf []byte) {
	const cacheLine = 64
	for i := 0; i < len(buf); i += cacheLine {
		buf[i]++
	}
}

// collect swaps every record's Count to zero and converts the chase
// threads' op counts into ns/op, summing the bandwidth threads' already-
// MiB/s-valued counts (spec.md 4.G computes MiB/s per closed interval and
// Adds it directly, so the runner only sums, it never recomputes).
func collect(records []record, nrChase, nrBand int, interval time.Duration) Sample {
	var s Sample
	if nrChase > 0 {
		var totalOps uint64
		for i := 0; i < nrChase; i++ {
			totalOps += records[i].Count.Swap(0)
		}
		if totalOps > 0 {
			s.LatencyNsPerOp = float64(interval.Nanoseconds()) * float64(nrChase) / float64(totalOps)
		}
	}
	if nrBand > 0 {
		var totalMiBps uint64
		for j := nrChase; j < nrChase+nrBand; j++ {
			totalMiBps += records[j].Count.Swap(0)
		}
		s.BandwidthMiBps = float64(totalMiBps)
	}
	return s
}

// Reduce computes the final reported value from retained samples per
// spec.md 6's "-a": the minimum (the multichase default metric, least
// susceptible to scheduling noise) or, when useMean is set, the
// arithmetic mean, or the geometric mean when geometric is additionally
// set.
func Reduce(samples []float64, useMean, geometric bool) float64 {
	if len(samples) == 0 {
		return 0
	}
	if !useMean {
		min := samples[0]
		for _, v := range samples[1:] {
			if v < min {
				min = v
			}
		}
		return min
	}
	if geometric {
		logSum := 0.0
		for _, v := range samples {
			logSum += math.Log(v)
		}
		return math.Exp(logSum / float64(len(samples)))
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
