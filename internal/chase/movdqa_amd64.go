// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package chase

import "unsafe"

//go:noescape
func foldMovDQAAsm(base unsafe.Pointer, off int64) int64

//go:noescape
func foldMovNTDQAAsm(base unsafe.Pointer, off int64) int64

// MovDQA reads the current 64-byte element as four 16-byte ordinary SIMD
// loads (MOVOU, the unaligned MOVDQU form) and folds the result (bitwise OR, since the element's
// trailing bytes are zero except the leading pointer) into the next
// address, per spec.md 4.F.
func MovDQA(s *State) {
	movKernel(s, foldMovDQAAsm)
}

// MovNTDQA is the same chase, but the four loads use MOVNTDQA (non-temporal
// aligned load), bypassing the cache hierarchy per the Intel manual.
func MovNTDQA(s *State) {
	movKernel(s, foldMovNTDQAAsm)
}

func movKernel(s *State, fold func(unsafe.Pointer, int64) int64) {
	const unroll = 200
	off := s.Heads[0]
	base := unsafe.Pointer(&s.Arena[0])
	for !s.stopped() {
		for i := 0; i < unroll; i++ {
			off = fold(base, off)
		}
		s.Count.Add(unroll)
	}
}
