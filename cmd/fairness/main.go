// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Command fairness measures the fairness of contended atomic increments
// across cores (spec.md 6, "CLI (fairness tool)"): nr_tested_cores
// threads each repeatedly increment their own slot of a shared counter
// array via one of three primitives, and the spread of per-slot counts
// after a fixed run is the fairness signal.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudbench/multichase/internal/affinity"
	"github.com/cloudbench/multichase/internal/config"
	"github.com/cloudbench/multichase/internal/fairness"
)

var rawFlags struct {
	lockedCAS bool
	exchange  bool
	fetchAdd  bool
	nrRelax   int
	nrElts    int
	nrCores   int
	duration  float64
	verbosity int
}

func main() {
	root := &cobra.Command{
		Use:   "fairness",
		Short: "fairness of contended atomic increments across cores",
		RunE:  run,
	}
	f := root.Flags()
	f.BoolVarP(&rawFlags.lockedCAS, "locked-cas", "l", false, "contend via a retried compare-and-swap loop (default)")
	f.BoolVarP(&rawFlags.exchange, "exchange", "u", false, "contend via a plain atomic exchange")
	f.BoolVarP(&rawFlags.fetchAdd, "fetch-add", "x", false, "contend via an atomic fetch-add")
	f.IntVarP(&rawFlags.nrRelax, "relax", "r", 0, "cpu_relax iterations between attempts")
	f.IntVarP(&rawFlags.nrElts, "array-elts", "s", 4, "number of counter array slots")
	f.IntVarP(&rawFlags.nrCores, "tested-cores", "c", 4, "number of contending threads")
	f.Float64VarP(&rawFlags.duration, "duration", "d", 1.0, "seconds to run")
	f.CountVarP(&rawFlags.verbosity, "verbose", "v", "increase verbosity")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	mode := fairness.ModeLockedCAS
	switch {
	case rawFlags.fetchAdd:
		mode = fairness.ModeFetchAdd
	case rawFlags.exchange:
		mode = fairness.ModeExchange
	}

	cfg := config.Fairness{
		Mode:          mode,
		NrRelax:       rawFlags.nrRelax,
		NrArrayElts:   rawFlags.nrElts,
		NrTestedCores: rawFlags.nrCores,
		Logger:        config.NewLogger(rawFlags.verbosity),
	}

	cpus, err := affinity.ProcessCPUs()
	if err != nil {
		cfg.Logger.Warn("running unpinned: could not read process CPU set", "err", err)
	}

	result, err := fairness.Run(cpus, cfg.NrTestedCores, cfg.NrArrayElts, cfg.NrRelax, cfg.Mode, time.Duration(rawFlags.duration*float64(time.Second)))
	if err != nil {
		cfg.Logger.Error("run failed", "err", err)
		return err
	}

	for i, count := range result.Counts {
		fmt.Printf("%d %d\n", i, count)
	}
	return nil
}
