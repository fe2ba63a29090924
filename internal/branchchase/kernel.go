// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package branchchase

import (
	"unsafe"

	"github.com/cloudbench/multichase/internal/chase"
)

func offsetOf(arena []byte, addr uintptr) int64 {
	return int64(addr) - int64(uintptr(unsafe.Pointer(&arena[0])))
}

// Kernel returns a chase.State-compatible kernel that repeatedly invokes
// an already-rewritten cycle (see Rewrite) as machine code, counting
// effectiveChunkSize elements visited per completed chunk call. The
// pointer lets the caller learn the Rewrite-chosen effective chunk size
// (it may differ from the requested one) after constructing the
// Workload but before the rewrite has actually run; the runner's startup
// barrier establishes happens-before between the write (in the runner's
// pre-barrier PostBuild hook) and this kernel's first read.
func Kernel(effectiveChunkSize *int64) func(*chase.State) {
	return func(s *chase.State) {
		entry := s.Heads[0]
		n := uint64(*effectiveChunkSize)
		for !s.Stopped() {
			addr := callMachineCode(uintptr(realAddr(s.Arena, entry)))
			entry = offsetOf(s.Arena, addr)
			s.Count.Add(n)
		}
	}
}
