// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Command pingpong measures inter-core cache-line hand-off latency across
// increasing core-pair distances (spec.md 6, "CLI (ping-pong tool)").
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudbench/multichase/internal/affinity"
	"github.com/cloudbench/multichase/internal/config"
	"github.com/cloudbench/multichase/internal/pingpong"
)

var rawFlags struct {
	mask      string
	sweepMax  int
	timeSlice float64
	sep       string
	verbosity int
}

func main() {
	root := &cobra.Command{
		Use:   "pingpong",
		Short: "inter-core cache-line ping-pong latency sweep",
		RunE:  run,
	}
	f := root.Flags()
	f.StringVarP(&rawFlags.mask, "mask", "d", "", "CPU mask (comma-separated core ids); empty uses the process CPU set")
	f.IntVarP(&rawFlags.sweepMax, "sweep-max", "s", 1, "sweep core-pair distance up to this many steps")
	f.Float64VarP(&rawFlags.timeSlice, "time-slice", "t", 0.1, "seconds spent per trial")
	f.StringVarP(&rawFlags.sep, "sep", "S", " ", "output field separator")
	f.CountVarP(&rawFlags.verbosity, "verbose", "v", "increase verbosity")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.PingPong{
		CPUMask:   rawFlags.mask,
		SweepMax:  rawFlags.sweepMax,
		TimeSlice: rawFlags.timeSlice,
		Separator: rawFlags.sep,
		Logger:    config.NewLogger(rawFlags.verbosity),
	}

	cpus, err := resolveCPUs(cfg.CPUMask)
	if err != nil {
		return err
	}

	results, err := pingpong.Sweep(cpus, cfg.SweepMax, time.Duration(cfg.TimeSlice*float64(time.Second)))
	if err != nil {
		cfg.Logger.Error("sweep failed", "err", err)
		return err
	}

	for _, r := range results {
		fmt.Printf("%d%s%d%s%.3f\n", r.CoreA, cfg.Separator, r.CoreB, cfg.Separator, r.NsPerRoundTrip)
	}
	return nil
}

// resolveCPUs parses "-d mask" into an affinity.CPUSet, falling back to the
// process's own affinity mask when mask is empty.
func resolveCPUs(mask string) (affinity.CPUSet, error) {
	if mask == "" {
		return affinity.ProcessCPUs()
	}
	return affinity.ParseMask(mask)
}
