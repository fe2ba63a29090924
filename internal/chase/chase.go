// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package chase builds and walks the cyclic pointer graph described in
// spec.md 3-4 (Element, Cycle, Chase graph builder, Chase kernels). The
// arena is modeled as a plain byte buffer; pointer slots store offsets
// (relative to the start of the arena slice, so they include the chase
// base) rather than absolute addresses, per the
// design note in spec.md 9 on languages without raw pointers.
package chase

import (
	"fmt"
	"unsafe"

	"github.com/cloudbench/multichase/internal/mixer"
	"github.com/cloudbench/multichase/internal/permute"
	"github.com/cloudbench/multichase/internal/rng"
)

// PtrSize is the width in bytes of a stored offset (the "pointer" slot).
const PtrSize = int64(unsafe.Sizeof(uint64(0)))

// loadOffset reads the 8-byte offset stored at absolute byte position at.
func loadOffset(buf []byte, at int64) int64 {
	return int64(*(*uint64)(unsafe.Pointer(&buf[at])))
}

// storeOffset writes v as the 8-byte offset at absolute byte position at.
func storeOffset(buf []byte, at int64, v int64) {
	*(*uint64)(unsafe.Pointer(&buf[at])) = uint64(v)
}

// Graph describes one threaded cycle embedded in an arena.
type Graph struct {
	Arena  []byte
	Base   int64 // byte offset of element 0 within Arena
	Stride int64
	NrElts int64
}

// BuildParams configures Build/BuildLong.
type BuildParams struct {
	Arena       []byte
	Base        int64
	TotalMemory int64
	Stride      int64
	TLBLocality int64
	Mixer       *mixer.Table
	Ordered     bool
	Seed        int
}

func validateGroups(totalMemory, stride, tlbLocality int64) (nrTLBGroups, nrEltsPerTLB, nrElts int64, err error) {
	if stride <= 0 {
		return 0, 0, 0, fmt.Errorf("chase: stride must be positive, got %d", stride)
	}
	if tlbLocality < stride {
		return 0, 0, 0, fmt.Errorf("chase: tlb_locality (%d) must be >= stride (%d)", tlbLocality, stride)
	}
	if tlbLocality%stride != 0 {
		return 0, 0, 0, fmt.Errorf("chase: tlb_locality (%d) must be a multiple of stride (%d)", tlbLocality, stride)
	}
	if totalMemory%tlbLocality != 0 {
		return 0, 0, 0, fmt.Errorf("chase: total_memory (%d) must be a multiple of tlb_locality (%d)", totalMemory, tlbLocality)
	}
	nrElts = totalMemory / stride
	nrEltsPerTLB = tlbLocality / stride
	nrTLBGroups = totalMemory / tlbLocality
	return nrTLBGroups, nrEltsPerTLB, nrElts, nil
}

// buildPermutation produces a TLB-grouped permutation of [0, nrElts): a
// random (or, if ordered, identity) permutation of TLB groups, each
// internally permuted and biased by its group's base index. This is
// spec.md 4.E steps 2-4.
func buildPermutation(nrTLBGroups, nrEltsPerTLB, nrElts int64, ordered bool, src rng.Source) ([]int64, error) {
	tlbPerm := make([]int64, nrTLBGroups)
	if ordered {
		permute.GenOrdered(tlbPerm, 0)
	} else {
		permute.GenRandom(tlbPerm, 0, src)
	}

	perm := make([]int64, nrElts)
	local := make([]int64, nrEltsPerTLB)
	for i := int64(0); i < nrTLBGroups; i++ {
		if ordered {
			permute.GenOrdered(local, 0)
		} else {
			permute.GenRandom(local, 0, src)
		}
		base := tlbPerm[i] * nrEltsPerTLB
		copy(perm[i*nrEltsPerTLB:(i+1)*nrEltsPerTLB], local)
		for j := range local {
			perm[i*nrEltsPerTLB+int64(j)] += base
		}
	}

	if !permute.IsPermutation(perm, 0) {
		return nil, fmt.Errorf("chase: internal invariant violated: constructed ordering is not a permutation of [0,%d)", nrElts)
	}
	return perm, nil
}

// link threads perm into a single cycle over the given mixer slot: for
// every position p, the pointer slot of element perm[p] is set to the
// pointer-slot address of perm[(p+1) mod len(perm)]. This is the
// forward-link resolution of the spec.md 9 open question (no inverse
// permutation is computed).
func link(arena []byte, base int64, stride int64, mix *mixer.Table, slot int, perm []int64) {
	n := int64(len(perm))
	for p := int64(0); p < n; p++ {
		from := perm[p]
		to := perm[(p+1)%n]
		fromAddr := base + mix.Mixed(from, slot, stride)
		toAddr := base + mix.Mixed(to, slot, stride)
		storeOffset(arena, fromAddr, toAddr)
	}
}

// Build threads params.Arena into a single cycle over mixerIdx, per
// spec.md 4.E. It returns the byte offset (relative to params.Arena) of
// element 0's pointer slot, which spec.md 4.E step 6 designates the head.
func Build(p BuildParams, mixerIdx int) (head int64, g *Graph, err error) {
	nrTLBGroups, nrEltsPerTLB, nrElts, err := validateGroups(p.TotalMemory, p.Stride, p.TLBLocality)
	if err != nil {
		return 0, nil, err
	}
	src := rng.NewLCG(mixerIdx)
	perm, err := buildPermutation(nrTLBGroups, nrEltsPerTLB, nrElts, p.Ordered, src)
	if err != nil {
		return 0, nil, err
	}
	link(p.Arena, p.Base, p.Stride, p.Mixer, mixerIdx, perm)

	head = p.Base + p.Mixer.Mixed(0, mixerIdx, p.Stride)
	return head, &Graph{Arena: p.Arena, Base: p.Base, Stride: p.Stride, NrElts: nrElts}, nil
}

// BuildLong implements generate_chase_long (spec.md 4.E): it builds
// nr_mixer_indices/totalPar independent full-nrElts permutations, each
// using its own disjoint mixer slot, and stitches the last element of
// sub-cycle m onto the first element of sub-cycle (m+1)%k instead of back
// onto its own start -- crossing each permutation exactly once so the
// result is one cycle of length k*nrElts, intended to defeat prefetchers
// that learn short, repeated chase patterns.
func BuildLong(p BuildParams, mixerIdx int, totalPar int) (head int64, g *Graph, err error) {
	nrTLBGroups, nrEltsPerTLB, nrElts, err := validateGroups(p.TotalMemory, p.Stride, p.TLBLocality)
	if err != nil {
		return 0, nil, err
	}
	if totalPar <= 0 {
		return 0, nil, fmt.Errorf("chase: total_par must be positive, got %d", totalPar)
	}
	k := p.Mixer.NrMixerIndices / totalPar
	if k < 1 {
		return 0, nil, fmt.Errorf("chase: nr_mixer_indices (%d) too small for total_par (%d)", p.Mixer.NrMixerIndices, totalPar)
	}
	baseSlot := mixerIdx * k

	perms := make([][]int64, k)
	for m := 0; m < k; m++ {
		src := rng.NewLCG(mixerIdx*1_000_003 + m)
		perm, err := buildPermutation(nrTLBGroups, nrEltsPerTLB, nrElts, p.Ordered, src)
		if err != nil {
			return 0, nil, err
		}
		perms[m] = perm
	}

	for m := 0; m < k; m++ {
		slot := baseSlot + m
		perm := perms[m]
		n := int64(len(perm))
		for pos := int64(0); pos < n; pos++ {
			from := perm[pos]
			var toAddr int64
			if pos+1 < n {
				to := perm[pos+1]
				toAddr = p.Base + p.Mixer.Mixed(to, slot, p.Stride)
			} else {
				// Cross into the next sub-cycle's start, in its own
				// (disjoint) mixer slot.
				nextSlot := baseSlot + (m+1)%k
				nextStart := perms[(m+1)%k][0]
				toAddr = p.Base + p.Mixer.Mixed(nextStart, nextSlot, p.Stride)
			}
			fromAddr := p.Base + p.Mixer.Mixed(from, slot, p.Stride)
			storeOffset(p.Arena, fromAddr, toAddr)
		}
	}

	head = p.Base + p.Mixer.Mixed(0, baseSlot, p.Stride)
	return head, &Graph{Arena: p.Arena, Base: p.Base, Stride: p.Stride, NrElts: nrElts}, nil
}

// CycleLen walks the cycle from head and returns its length, used by both
// property tests and the branch-chase rewriter (spec.md 4.H needs the
// cycle length up front to pick a chunk size).
func CycleLen(arena []byte, head int64) int64 {
	var n int64
	off := head
	for {
		off = loadOffset(arena, off)
		n++
		if off == head {
			return n
		}
	}
}

// Walk calls visit once per element in visitation order, starting and
// ending at head (head itself is visited first). It stops after exactly n
// steps, where n is typically CycleLen(arena, head).
func Walk(arena []byte, head int64, n int64, visit func(addr int64)) {
	off := head
	for i := int64(0); i < n; i++ {
		visit(off)
		off = loadOffset(arena, off)
	}
}

// PlantCritWord rewrites an already-built cycle (walking it post-hoc, per
// spec.md 4.F's "built post-hoc by walking the cycle" wording) so that each
// element also stores a secondary pointer at byte offset n within the
// element: *(p+n) = p+n (a self-pointer used purely so the critword kernel
// has a second, same-cadence address to read each step).
func PlantCritWord(arena []byte, head int64, cycleLen int64, n int64) {
	Walk(arena, head, cycleLen, func(addr int64) {
		storeOffset(arena, addr+n, addr+n)
	})
}

// PlantCritWord2 rewrites an already-built cycle into a second, parallel
// cycle offset by n bytes from the first: *(p+n) = next+n, per spec.md 4.F.
func PlantCritWord2(arena []byte, head int64, cycleLen int64, n int64) {
	off := head
	for i := int64(0); i < cycleLen; i++ {
		next := loadOffset(arena, off)
		storeOffset(arena, off+n, next+n)
		off = next
	}
}
