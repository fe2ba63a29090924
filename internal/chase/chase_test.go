// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package chase

import (
	"testing"

	"github.com/cloudbench/multichase/internal/mixer"
	"github.com/cloudbench/multichase/internal/permute"
	"github.com/cloudbench/multichase/internal/rng"
)

// TestBuildS1SmallOrderedCycle is S1: an ordered 8-element cycle of
// sizeof(ptr) stride visits 0->1->...->7->0, and CycleLen reports 8.
func TestBuildS1SmallOrderedCycle(t *testing.T) {
	const nrElts = 8
	stride := PtrSize
	arena := make([]byte, nrElts*stride)
	mix := mixer.Build(mixer.SlotCount(1, 1), 1, 1)

	head, _, err := Build(BuildParams{
		Arena:       arena,
		TotalMemory: nrElts * stride,
		Stride:      stride,
		TLBLocality: nrElts * stride,
		Mixer:       mix,
		Ordered:     true,
		Seed:        0,
	}, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := CycleLen(arena, head); got != nrElts {
		t.Fatalf("CycleLen = %d, want %d", got, nrElts)
	}

	var visited []int64
	Walk(arena, head, nrElts, func(addr int64) { visited = append(visited, addr) })
	for i, addr := range visited {
		want := int64(i) * stride
		if addr != want {
			t.Errorf("visit %d: addr = %d, want %d (ordered cycle 0->1->...->7->0)", i, addr, want)
		}
	}
}

// TestBuildS2FairnessInvariant is S2: total_memory=1MiB, stride=256,
// tlb_locality=64*4096 produces a permutation of nr_elts.
func TestBuildS2FairnessInvariant(t *testing.T) {
	const (
		totalMemory = 1 << 20
		stride      = 256
		tlbLocality = 64 * 4096
	)
	arena := make([]byte, totalMemory)
	mix := mixer.Build(mixer.SlotCount(1, 1), int(stride/PtrSize), 1)

	nrTLBGroups, nrEltsPerTLB, nrElts, err := validateGroups(totalMemory, stride, tlbLocality)
	if err != nil {
		t.Fatalf("validateGroups: %v", err)
	}
	perm, err := buildPermutation(nrTLBGroups, nrEltsPerTLB, nrElts, false, rng.NewLCG(0))
	if err != nil {
		t.Fatalf("buildPermutation: %v", err)
	}
	if !permute.IsPermutation(perm, 0) {
		t.Fatalf("generated ordering is not a permutation of [0,%d)", nrElts)
	}

	if _, _, err := Build(BuildParams{
		Arena:       arena,
		TotalMemory: totalMemory,
		Stride:      stride,
		TLBLocality: tlbLocality,
		Mixer:       mix,
		Seed:        0,
	}, 0); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

// TestBuildLongCrossesPermutations exercises generate_chase_long
// (spec.md 4.E): with nr_mixer_indices=4 and total_par=2, it builds two
// disjoint 16-element permutations and stitches them into one 32-element
// super-cycle, crossing from one permutation into the other exactly once
// each.
func TestBuildLongCrossesPermutations(t *testing.T) {
	const (
		totalMemory = 1024
		stride      = 64
		tlbLocality = 64 // one element per TLB group: 16 groups over the 16-element arena
		totalPar    = 2
	)
	arena := make([]byte, totalMemory)
	mix := mixer.Build(mixer.SlotCount(1, 1), 4, 1)

	head, g, err := BuildLong(BuildParams{
		Arena:       arena,
		TotalMemory: totalMemory,
		Stride:      stride,
		TLBLocality: tlbLocality,
		Mixer:       mix,
		Seed:        0,
	}, 0, totalPar)
	if err != nil {
		t.Fatalf("BuildLong: %v", err)
	}

	nrElts := totalMemory / stride
	wantLen := int64(nrElts * totalPar)
	if got := CycleLen(arena, head); got != wantLen {
		t.Fatalf("CycleLen = %d, want %d (%d sub-cycles of %d elements each)", got, wantLen, totalPar, nrElts)
	}

	seen := make(map[int64]bool, wantLen)
	Walk(arena, head, wantLen, func(addr int64) {
		if addr < g.Base || addr >= g.Base+totalMemory {
			t.Fatalf("address %d out of arena element range [%d,%d)", addr, g.Base, g.Base+totalMemory)
		}
		if seen[addr] {
			t.Fatalf("address %d visited twice in one super-cycle traversal", addr)
		}
		seen[addr] = true
	})
}

// TestCycleCompletenessAndTLBLocality is property 3 and property 5: the
// cycle visits every element exactly once, every address lies inside the
// arena's element range, and within every aligned TLB-locality window the
// chase enters once and walks exactly nrEltsPerTLB consecutive elements
// before leaving.
func TestCycleCompletenessAndTLBLocality(t *testing.T) {
	const (
		totalMemory = 64 * 1024
		stride      = 64
		tlbLocality = 4 * stride
	)
	arena := make([]byte, totalMemory)
	mix := mixer.Build(mixer.SlotCount(1, 1), int(stride/PtrSize), 1)

	head, g, err := Build(BuildParams{
		Arena:       arena,
		TotalMemory: totalMemory,
		Stride:      stride,
		TLBLocality: tlbLocality,
		Mixer:       mix,
		Seed:        3,
	}, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	nrElts := totalMemory / stride
	seen := make(map[int64]bool, nrElts)
	nrEltsPerTLB := tlbLocality / stride

	var visited []int64
	Walk(arena, head, int64(nrElts), func(addr int64) {
		if addr < g.Base || addr >= g.Base+totalMemory {
			t.Fatalf("address %d out of arena element range [%d,%d)", addr, g.Base, g.Base+totalMemory)
		}
		if x := (addr - g.Base) / stride; addr != g.Base+mix.Mixed(x, 0, stride) {
			t.Fatalf("address %d is not element %d's pointer slot for mixer slot 0", addr, x)
		}
		if seen[addr] {
			t.Fatalf("address %d visited twice: cycle is not a simple permutation", addr)
		}
		seen[addr] = true
		visited = append(visited, addr)
	})
	if len(seen) != nrElts {
		t.Fatalf("visited %d distinct elements, want %d", len(seen), nrElts)
	}
	if got := CycleLen(arena, head); got != int64(nrElts) {
		t.Fatalf("CycleLen = %d, want %d", got, nrElts)
	}

	// The cycle is circular; head need not land on a window boundary, so
	// rotate the visited sequence to start at one before scanning for
	// consecutive same-window runs (otherwise the window containing head
	// would appear as two separate partial runs, at the start and end of
	// the slice).
	windowOf := func(addr int64) int64 { return (addr - g.Base) / tlbLocality }
	n := len(visited)
	start := 0
	for k := 0; k < n; k++ {
		prev := (k - 1 + n) % n
		if windowOf(visited[k]) != windowOf(visited[prev]) {
			start = k
			break
		}
	}
	rotated := append(append([]int64{}, visited[start:]...), visited[:start]...)

	i := 0
	for i < len(rotated) {
		w := windowOf(rotated[i])
		run := 0
		for i < len(rotated) && windowOf(rotated[i]) == w {
			run++
			i++
		}
		if run != nrEltsPerTLB {
			t.Fatalf("window %d: ran %d consecutive elements, want exactly %d", w, run, nrEltsPerTLB)
		}
	}
}
