// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package chase

import "unsafe"

//go:noescape
func prefetchT0Asm(p unsafe.Pointer)

//go:noescape
func prefetchT1Asm(p unsafe.Pointer)

//go:noescape
func prefetchT2Asm(p unsafe.Pointer)

//go:noescape
func prefetchNTAAsm(p unsafe.Pointer)

func prefetchAddr(arena []byte, at int64, hint func(unsafe.Pointer)) {
	hint(unsafe.Pointer(&arena[at]))
}

// PrefetchT0 issues PREFETCHT0 on the current address before dereferencing.
func PrefetchT0(s *State) { prefetchKernel(s, prefetchT0Asm) }

// PrefetchT1 issues PREFETCHT1 on the current address before dereferencing.
func PrefetchT1(s *State) { prefetchKernel(s, prefetchT1Asm) }

// PrefetchT2 issues PREFETCHT2 on the current address before dereferencing.
func PrefetchT2(s *State) { prefetchKernel(s, prefetchT2Asm) }

// PrefetchNTA issues PREFETCHNTA on the current address before dereferencing.
func PrefetchNTA(s *State) { prefetchKernel(s, prefetchNTAAsm) }

func prefetchKernel(s *State, hint func(unsafe.Pointer)) {
	const unroll = 200
	off := s.Heads[0]
	for !s.stopped() {
		for i := 0; i < unroll; i++ {
			prefetchAddr(s.Arena, off, hint)
			off = loadOffset(s.Arena, off)
		}
		s.Count.Add(unroll)
	}
}
