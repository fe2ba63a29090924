// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package chase

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudbench/multichase/internal/mixer"
)

func TestParseWorkloadSimple(t *testing.T) {
	w, err := ParseWorkload("simple")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	if w.Run == nil {
		t.Fatal("Run is nil")
	}
}

func TestParseWorkloadParallelRange(t *testing.T) {
	for _, name := range []string{"parallel1", "parallel11", "parallelx"} {
		if _, err := ParseWorkload(name); err == nil {
			t.Errorf("ParseWorkload(%q): expected error", name)
		}
	}
	w, err := ParseWorkload("parallel4")
	if err != nil {
		t.Fatalf("ParseWorkload(parallel4): %v", err)
	}
	if w.NrParallel != 4 {
		t.Fatalf("NrParallel = %d, want 4", w.NrParallel)
	}
}

func TestParseWorkloadRequiresArg(t *testing.T) {
	for _, name := range []string{"work", "critword", "critword2"} {
		if _, err := ParseWorkload(name); err == nil {
			t.Errorf("ParseWorkload(%q) without arg: expected error", name)
		}
	}
	w, err := ParseWorkload("work:40")
	if err != nil {
		t.Fatalf("ParseWorkload(work:40): %v", err)
	}
	if w.WorkOps != 40 {
		t.Fatalf("WorkOps = %d, want 40", w.WorkOps)
	}
}

func TestParseWorkloadUnknown(t *testing.T) {
	if _, err := ParseWorkload("bogus"); err == nil {
		t.Fatal("expected error for unknown workload")
	}
}

func TestParseWorkloadRunnable(t *testing.T) {
	w, err := ParseWorkload("incr")
	if err != nil {
		t.Fatalf("ParseWorkload: %v", err)
	}
	arena := make([]byte, 4096)
	mix := mixer.Build(mixer.SlotCount(1, 1), 1, 1)
	_, g, err := Build(BuildParams{
		Arena: arena, Base: 0, TotalMemory: 4096, Stride: 64, TLBLocality: 64, Mixer: mix, Seed: 1,
	}, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var count atomic.Uint64
	var stop atomic.Bool
	s := &State{Arena: g.Arena, Count: &count, Stop: &stop}
	s.Heads[0] = 0

	done := make(chan struct{})
	go func() {
		w.Run(s)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	stop.Store(true)
	<-done

	if count.Load() == 0 {
		t.Fatal("expected at least one unroll batch counted")
	}
}

func TestParseWorkloadMovdqaRequiresStride64(t *testing.T) {
	w, err := ParseWorkload("movdqa")
	if err != nil {
		t.Skipf("movdqa unavailable on this arch: %v", err)
	}
	if w.RequiredStride != 64 {
		t.Fatalf("RequiredStride = %d, want 64", w.RequiredStride)
	}
}

func TestParseWorkloadErrorMentionsName(t *testing.T) {
	_, err := ParseWorkload("work:abc")
	if err == nil || !strings.Contains(err.Error(), "work") {
		t.Fatalf("err = %v, want mention of 'work'", err)
	}
}
