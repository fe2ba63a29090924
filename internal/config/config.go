// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package config reifies the process-global knobs spec.md 9 calls out
// ("Verbosity, NUMA weights, and the THP flag are currently
// process-global... reify them into an immutable configuration value
// built once in the runner and passed to components") into a single
// value built once per cmd/ entrypoint and threaded everywhere else.
package config

import (
	"log/slog"
	"os"

	"github.com/pbnjay/memory"

	"github.com/cloudbench/multichase/internal/fairness"
	"github.com/cloudbench/multichase/internal/numa"
)

// Chase holds the chase-tool configuration assembled from CLI flags
// (spec.md 6). It is built once in cmd/multichase/main.go and never
// mutated afterward.
type Chase struct {
	Workload    string // -c
	LoadKernel  string // -l, "" if not loaded-latency mode
	TotalMemory int64  // -m
	NrSamples   int    // -n
	Stride      int64  // -s
	TLBLocality int64  // -T
	NrThreads   int    // -t
	Ordered     bool   // -o
	Offset      int64  // -O
	PageSize    int64  // -p
	UseTHP      bool   // -H
	CacheFlush  int64  // -F
	NUMAWeights []numa.Weight
	NoAffinity  bool // -X
	Verbosity   int  // -v, repeatable
	Timestamp   bool // -y
	UseMean     bool // -a: arithmetic mean instead of min
	Logger      *slog.Logger
}

// DefaultTotalMemory reports the system's total memory, the same default
// sizing source joeycumines-go-utilpkg uses for its own memory-aware
// defaults (see DESIGN.md), for use when "-m" is omitted.
func DefaultTotalMemory() int64 {
	return int64(memory.TotalMemory())
}

// NewLogger builds the leveled logger used throughout the runner and
// kernels; verbosity maps repeated "-v" flags to progressively louder
// levels (spec.md 6: "-v increment verbosity").
func NewLogger(verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// PingPong holds the ping-pong tool configuration (spec.md 6).
type PingPong struct {
	CPUMask   string  // -d
	SweepMax  int     // -s
	TimeSlice float64 // -t (seconds)
	Separator string  // -S
	Logger    *slog.Logger
}

// Fairness holds the fairness tool configuration (spec.md 6).
type Fairness struct {
	Mode          fairness.Mode // -l | -u | -x
	NrRelax       int           // -r
	NrArrayElts   int           // -s
	NrTestedCores int           // -c
	Logger        *slog.Logger
}
