// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package cpufeat detects the per-architecture capabilities the chase
// kernels and branch-chase rewriter need: prefetch hint support, SIMD
// register widths for movdqa/movntdqa, and branch-chase code generation.
// Detection logic is split per architecture the same way the teacher
// package splits dispatch_amd64.go / dispatch_arm64.go / dispatch_other.go:
// this file declares the package vars and accessors, and each arch file's
// own init() populates the vars.
package cpufeat

import (
	"os"
	"strconv"
)

// Arch names the architecture family this process is running under, for
// reporting and for gating which chase-kernel names the registry accepts.
type Arch int

const (
	ArchOther Arch = iota
	ArchAMD64
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchAMD64:
		return "amd64"
	case ArchARM64:
		return "arm64"
	default:
		return "other"
	}
}

// set by arch-specific init() in cpufeat_amd64.go / cpufeat_arm64.go /
// cpufeat_other.go.
var (
	currentArch      Arch
	hasPrefetch      bool
	hasSSE2OrNEON    bool // baseline 128-bit SIMD, needed for movdqa/movntdqa
	hasNonTemporal   bool // movntdqa / non-temporal NEON loads
	branchChaseWidth int  // bytes needed per element for the branch-chase encoding, 0 if unsupported
)

// CurrentArch reports the detected architecture family.
func CurrentArch() Arch { return currentArch }

// HasPrefetch reports whether the prefetcht0/t1/t2/nta kernel variants are
// available on this architecture.
func HasPrefetch() bool { return hasPrefetch }

// HasSIMD128 reports whether movdqa-style 128-bit loads are available.
func HasSIMD128() bool { return hasSSE2OrNEON }

// HasNonTemporal reports whether a non-temporal (cache-bypassing) 128-bit
// load is available (movntdqa on x86_64).
func HasNonTemporal() bool { return hasNonTemporal }

// BranchChaseSlotSize returns the number of bytes the branch-chase rewriter
// needs at the head of each element on this architecture, or 0 if branch
// chase is unsupported here.
func BranchChaseSlotSize() int { return branchChaseWidth }

// Disabled mirrors the teacher's HWY_NO_SIMD escape hatch:
// MULTICHASE_NO_ARCH_KERNELS forces every architecture-specific capability
// off, falling back to the portable chase kernels, regardless of detected
// hardware. Useful under emulation or for reproducing portable baselines.
// Each arch-specific init() consults this before setting any capability.
func Disabled() bool {
	v := os.Getenv("MULTICHASE_NO_ARCH_KERNELS")
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}
