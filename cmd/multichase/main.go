// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Command multichase is the chase tool of spec.md 6: it builds and walks
// a randomized-but-reproducible cyclic pointer graph under
// caller-specified stride, TLB-locality, and parallelism constraints,
// optionally against N concurrent bandwidth-generating threads (loaded
// latency, -l).
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cloudbench/multichase/internal/affinity"
	"github.com/cloudbench/multichase/internal/arena"
	"github.com/cloudbench/multichase/internal/bandwidth"
	"github.com/cloudbench/multichase/internal/branchchase"
	"github.com/cloudbench/multichase/internal/chase"
	"github.com/cloudbench/multichase/internal/config"
	"github.com/cloudbench/multichase/internal/mixer"
	"github.com/cloudbench/multichase/internal/numa"
	"github.com/cloudbench/multichase/internal/runner"
	"github.com/cloudbench/multichase/internal/sizefmt"
)

// rawFlags holds the as-typed CLI strings before size-suffix parsing;
// config.Chase holds the resolved, immutable values built from these
// once at startup (spec.md 9's "reify globals into an immutable
// configuration value" design note).
var rawFlags struct {
	workload    string
	loadKernel  string
	memSize     string
	nrSamples   int
	stride      string
	tlbLocality string
	nrThreads   int
	ordered     bool
	offset      string
	pageSize    string
	useTHP      bool
	cacheFlush  string
	numaWeights string
	noAffinity  bool
	verbosity   int
	timestamp   bool
	useMean     bool
}

func main() {
	// Set GOMAXPROCS from the container's cgroup CPU quota. No default
	// in this tool is derived from GOMAXPROCS (-t defaults to 1).
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "multichase: automaxprocs: %v\n", err)
	}

	root := &cobra.Command{
		Use:   "multichase",
		Short: "pointer-chase latency and bandwidth micro-benchmark",
		RunE:  run,
	}
	f := root.Flags()
	f.StringVarP(&rawFlags.workload, "chase", "c", "simple", "chase workload name[:arg]")
	f.StringVarP(&rawFlags.loadKernel, "load", "l", "", "bandwidth kernel name (loaded-latency mode)")
	f.StringVarP(&rawFlags.memSize, "mem", "m", "", "total memory (suffix k/m/g/t); defaults to the system's total memory")
	f.IntVarP(&rawFlags.nrSamples, "samples", "n", 5, "number of samples to report")
	f.StringVarP(&rawFlags.stride, "stride", "s", "64", "element stride in bytes")
	f.StringVarP(&rawFlags.tlbLocality, "tlb-locality", "T", "4096", "TLB locality window in bytes")
	f.IntVarP(&rawFlags.nrThreads, "threads", "t", 1, "number of threads (with -l: one chase thread plus t-1 bandwidth threads)")
	f.BoolVarP(&rawFlags.ordered, "ordered", "o", false, "use an ordered rather than random permutation")
	f.StringVarP(&rawFlags.offset, "offset", "O", "0", "shift the entire chase by N bytes")
	f.StringVarP(&rawFlags.pageSize, "page-size", "p", "0", "backing page size (0 = native)")
	f.BoolVarP(&rawFlags.useTHP, "thp", "H", false, "request transparent huge pages")
	f.StringVarP(&rawFlags.cacheFlush, "flush", "F", "0", "cache-flush area size")
	f.StringVarP(&rawFlags.numaWeights, "numa-weights", "W", "", "NUMA weights as node:weight,...")
	f.BoolVarP(&rawFlags.noAffinity, "no-affinity", "X", false, "disable CPU affinity pinning")
	f.CountVarP(&rawFlags.verbosity, "verbose", "v", "increase verbosity")
	f.BoolVarP(&rawFlags.timestamp, "timestamp", "y", false, "timestamp each output line")
	f.BoolVarP(&rawFlags.useMean, "mean", "a", false, "report arithmetic mean instead of min")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolve turns rawFlags into the immutable config.Chase value, parsing
// every size-suffixed string once (spec.md 7a: a bad suffix is a
// configuration error, reported via cobra's usage path).
func resolve() (config.Chase, error) {
	var cfg config.Chase
	var err error
	if rawFlags.memSize == "" {
		cfg.TotalMemory = config.DefaultTotalMemory()
	} else if cfg.TotalMemory, err = sizefmt.Parse(rawFlags.memSize); err != nil {
		return cfg, err
	}
	if cfg.Stride, err = sizefmt.Parse(rawFlags.stride); err != nil {
		return cfg, err
	}
	if cfg.TLBLocality, err = sizefmt.Parse(rawFlags.tlbLocality); err != nil {
		return cfg, err
	}
	if cfg.Offset, err = sizefmt.Parse(rawFlags.offset); err != nil {
		return cfg, err
	}
	if cfg.PageSize, err = sizefmt.Parse(rawFlags.pageSize); err != nil {
		return cfg, err
	}
	if cfg.CacheFlush, err = sizefmt.Parse(rawFlags.cacheFlush); err != nil {
		return cfg, err
	}
	if rawFlags.numaWeights != "" {
		if cfg.NUMAWeights, err = numa.ParseWeights(rawFlags.numaWeights); err != nil {
			return cfg, err
		}
	}
	cfg.Workload = rawFlags.workload
	cfg.LoadKernel = rawFlags.loadKernel
	cfg.NrSamples = rawFlags.nrSamples
	cfg.NrThreads = rawFlags.nrThreads
	cfg.Ordered = rawFlags.ordered
	cfg.UseTHP = rawFlags.useTHP
	cfg.NoAffinity = rawFlags.noAffinity
	cfg.Verbosity = rawFlags.verbosity
	cfg.Timestamp = rawFlags.timestamp
	cfg.UseMean = rawFlags.useMean
	cfg.Logger = config.NewLogger(rawFlags.verbosity)
	return cfg, nil
}

// resolveWorkload parses "-c name[:arg]", special-casing "branch[:chunk]"
// (spec.md 4.H) since its Workload.Run closure and the arena rewrite it
// needs both live in internal/branchchase, a package internal/chase
// cannot import without a cycle. Every other name goes through the
// ordinary registry. The returned hook, when non-nil, must run once on
// the built chase graph before the runner's startup barrier releases any
// worker.
func resolveWorkload(spec string) (chase.Workload, func(arena []byte, head int64) (int64, error), error) {
	name, arg, _ := strings.Cut(spec, ":")
	if name != "branch" {
		workload, err := chase.ParseWorkload(spec)
		return workload, nil, err
	}

	requested := 64
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return chase.Workload{}, nil, fmt.Errorf("multichase: invalid branch chunk size %q: %w", arg, err)
		}
		requested = n
	}

	var effectiveChunkSize int64
	workload := chase.Workload{Name: "branch", Run: branchchase.Kernel(&effectiveChunkSize)}
	postBuild := func(arenaBytes []byte, head int64) (int64, error) {
		res, err := branchchase.Rewrite(arenaBytes, head, requested)
		if err != nil {
			return 0, err
		}
		effectiveChunkSize = res.EffectiveChunkSize
		return res.Entry, nil
	}
	return workload, postBuild, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := resolve()
	if err != nil {
		return err
	}

	workload, postBuild, err := resolveWorkload(cfg.Workload)
	if err != nil {
		return err
	}

	var loadKernel *bandwidth.Kernel
	if cfg.LoadKernel != "" {
		k, err := bandwidth.Lookup(cfg.LoadKernel)
		if err != nil {
			return err
		}
		loadKernel = &k
	}

	var numaBinder arena.NUMABinder
	if len(cfg.NUMAWeights) > 0 {
		binder, err := numa.NewBinder(cfg.NUMAWeights, 1)
		if err != nil {
			return err
		}
		numaBinder = binder
	}

	region, err := arena.Alloc(arena.Config{
		Size:        cfg.TotalMemory + cfg.Offset,
		PageSize:    cfg.PageSize,
		UseTHP:      cfg.UseTHP,
		NUMAWeights: numaBinder,
	})
	if err != nil {
		cfg.Logger.Error("arena allocation failed", "err", err)
		return err
	}

	nrChaseThreads := cfg.NrThreads
	nrBandThreads := 0
	if loadKernel != nil {
		nrBandThreads = nrChaseThreads - 1
		if nrBandThreads < 0 {
			nrBandThreads = 0
		}
		nrChaseThreads = 1
	}

	// parallelism is the number of independent chase heads each chase
	// thread advances per mixerIdx slot (spec.md 4.I step 5); 1 outside
	// "-c parallelN".
	parallelism := 1
	if workload.NrParallel > 1 {
		parallelism = workload.NrParallel
	}

	// nrMixerIndices is normally stride/ptr_size, but branch chase needs
	// every element's pointer slot at the element's own start (spec.md
	// 4.H: "emit a fixed-length instruction sequence at the element's
	// start"), not at a mixer-shifted intra-element offset, since the
	// emitted code can otherwise overrun into the next element. Forcing
	// nr_mixer_indices to 1 makes MIXED(x,_) == x*stride for every
	// element, so branch chase is restricted to a single chase thread:
	// with only one mixer index there is no disjoint slot left for a
	// second thread's cycle to live in without colliding byte-for-byte
	// with the first.
	nrMixerIndices := int(cfg.Stride / chase.PtrSize)
	if workload.Name == "incr" {
		// incr's base object is the pointer plus its 32-bit counter,
		// padded to 16 bytes, so the counter stays inside the element.
		nrMixerIndices = int(cfg.Stride / (2 * chase.PtrSize))
	}
	if workload.Name == "branch" {
		if nrChaseThreads > 1 {
			cfg.Logger.Warn("branch chase does not support multiple chase threads; forcing -t 1")
		}
		nrChaseThreads = 1
		parallelism = 1
		nrMixerIndices = 1
	}

	mix := mixer.Build(mixer.SlotCount(nrChaseThreads, parallelism), nrMixerIndices, 1)

	var cpus affinity.CPUSet
	if !cfg.NoAffinity {
		cpus, err = affinity.ProcessCPUs()
		if err != nil {
			cfg.Logger.Warn("affinity disabled: could not read process CPU set", "err", err)
		}
	}

	var flushArena []byte
	if cfg.CacheFlush > 0 {
		flushRegion, err := arena.Alloc(arena.Config{Size: cfg.CacheFlush})
		if err != nil {
			cfg.Logger.Error("cache-flush arena allocation failed", "err", err)
			return err
		}
		flushArena = flushRegion.Bytes
	}

	results, err := runner.Run(runner.Params{
		ChaseWorkload:  workload,
		HasChase:       true,
		NrChaseThreads: nrChaseThreads,
		LoadKernel:     loadKernel,
		NrBandwidth:    nrBandThreads,
		Build: chase.BuildParams{
			Arena:       region.Bytes,
			Base:        cfg.Offset,
			TotalMemory: cfg.TotalMemory,
			Stride:      cfg.Stride,
			TLBLocality: cfg.TLBLocality,
			Mixer:       mix,
			Ordered:     cfg.Ordered,
			Seed:        1,
		},
		PostBuild:      postBuild,
		FlushArena:     flushArena,
		LoadArenaSize:  cfg.TotalMemory,
		NrSamples:      cfg.NrSamples,
		SampleInterval: time.Second,
		UseAffinity:    !cfg.NoAffinity,
		CPUs:           cpus,
		Logger:         cfg.Logger,
	})
	if err != nil {
		cfg.Logger.Error("run failed", "err", err)
		return err
	}

	report(results, cfg.UseMean, cfg.Timestamp, loadKernel != nil)
	return nil
}

func report(results runner.Results, useMean, timestamp, loaded bool) {
	latencies := make([]float64, 0, len(results.Samples))
	bandwidths := make([]float64, 0, len(results.Samples))
	for _, s := range results.Samples {
		latencies = append(latencies, s.LatencyNsPerOp)
		if loaded {
			bandwidths = append(bandwidths, s.BandwidthMiBps)
		}
	}

	for _, s := range results.Samples {
		line := fmt.Sprintf("%.3f", s.LatencyNsPerOp)
		if loaded {
			line += fmt.Sprintf(" %.3f", s.BandwidthMiBps)
		}
		if timestamp {
			line = fmt.Sprintf("%d %s", time.Now().UnixNano(), line)
		}
		fmt.Println(line)
	}

	latencyAgg := runner.Reduce(latencies, useMean, false)
	if loaded {
		bwAgg := runner.Reduce(bandwidths, true, false)
		fmt.Printf("avg %.3f %.3f\n", latencyAgg, bwAgg)
		return
	}
	fmt.Printf("avg %.3f\n", latencyAgg)
}
