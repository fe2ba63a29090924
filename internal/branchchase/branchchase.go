// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package branchchase implements the branch-chase rewriter of spec.md
// 4.H: given an already-built cyclic pointer graph (internal/chase), it
// overwrites each element's leading bytes with a fixed-length machine
// code sequence that loads the next element's address and branches to
// it, except at chunk boundaries where it returns to the caller. The
// exact per-architecture encodings are specified bit-exactly in
// spec.md 6.
package branchchase

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/cloudbench/multichase/internal/chase"
	"github.com/cloudbench/multichase/internal/cpufeat"
)

// ErrUnsupportedArch is returned when the running architecture has no
// branch-chase emitter (spec.md 4.H is only specified for amd64/arm64).
var ErrUnsupportedArch = errors.New("branchchase: unsupported architecture")

// ErrInsufficientSlack is the arena-layout error from spec.md 7(c): an
// element's bytes [8, code_len) are not all zero, so emitting code there
// would clobber live data.
var ErrInsufficientSlack = errors.New("branchchase: element lacks zeroed slack for branch code")

// Result describes a completed rewrite.
type Result struct {
	// EffectiveChunkSize is the power-of-two divisor of the cycle length
	// actually used, chosen closest to the caller's requested size.
	EffectiveChunkSize int64
	CodeLen            int
	// Entry is the arena offset of the first element, which callers
	// treat as "a function that returns a function pointer" per
	// spec.md 8 property 8.
	Entry int64
}

// emitter produces the per-architecture instruction bytes for one
// element: target is the real memory address of the next element
// (or, at a chunk boundary, of the next chunk's entry element); ret
// selects the chunk-boundary return-to-caller form instead of an
// indirect branch.
type emitter func(target uint64, ret bool) []byte

func emitterFor(arch cpufeat.Arch) (emitter, int, error) {
	switch arch {
	case cpufeat.ArchAMD64:
		return emitAMD64, 12, nil
	case cpufeat.ArchARM64:
		return emitARM64, 16, nil
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedArch, arch)
	}
}

// closestPowerOfTwoDivisor returns the power-of-two divisor of n closest
// to requested (spec.md 4.H: "a power-of-two divisor of the cycle length
// closest to the requested chunk size"). Ties favor the smaller divisor.
func closestPowerOfTwoDivisor(n int64, requested int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("branchchase: empty cycle")
	}
	var best int64 = -1
	var bestDist int64 = -1
	for d := int64(1); d <= n; d *= 2 {
		if n%d != 0 {
			continue
		}
		dist := int64(requested) - d
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist || (dist == bestDist && d < best) {
			best, bestDist = d, dist
		}
	}
	if best == -1 {
		return 0, fmt.Errorf("branchchase: cycle length %d has no power-of-two divisor", n)
	}
	return best, nil
}

// Rewrite converts the cycle starting at head into branch-chase machine
// code, per spec.md 4.H. arena must be the same backing slice the chase
// graph was built over; head is the offset returned by chase.Build.
func Rewrite(arena []byte, head int64, requestedChunkSize int) (Result, error) {
	emit, codeLen, err := emitterFor(cpufeat.CurrentArch())
	if err != nil {
		return Result{}, err
	}

	cycleLen := chase.CycleLen(arena, head)
	effective, err := closestPowerOfTwoDivisor(cycleLen, requestedChunkSize)
	if err != nil {
		return Result{}, err
	}

	addrs := make([]int64, 0, cycleLen)
	chase.Walk(arena, head, cycleLen, func(addr int64) {
		addrs = append(addrs, addr)
	})

	for _, addr := range addrs {
		for b := int64(8); b < int64(codeLen); b++ {
			if arena[addr+b] != 0 {
				return Result{}, fmt.Errorf("%w: offset %d byte %d = %#x", ErrInsufficientSlack, addr, b, arena[addr+b])
			}
		}
	}

	n := int64(len(addrs))
	for i, addr := range addrs {
		isChunkEnd := (int64(i)+1)%effective == 0
		var targetOff int64
		if isChunkEnd {
			nextChunkStart := (int64(i) + 1) % n
			targetOff = addrs[nextChunkStart]
		} else {
			targetOff = addrs[(int64(i)+1)%n]
		}
		target := realAddr(arena, targetOff)
		code := emit(target, isChunkEnd)
		copy(arena[addr:addr+int64(codeLen)], code)
	}

	return Result{EffectiveChunkSize: effective, CodeLen: codeLen, Entry: head}, nil
}

// realAddr returns the actual process memory address backing arena[off],
// which is what the emitted indirect-branch target must encode: the
// chase graph itself stores relative offsets (spec.md 9's pointer-free
// design note), but machine code branches need real addresses.
func realAddr(arena []byte, off int64) uint64 {
	return uint64(uintptr(unsafe.Pointer(&arena[off])))
}
