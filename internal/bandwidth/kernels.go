// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package bandwidth

import (
	"sync/atomic"
	"unsafe"
)

// asWords reinterprets a byte slice as a uint64 slice, matching the
// teacher's low-level unsafe-cast idiom used throughout internal/chase
// for the same purpose: these kernels move memory word-at-a-time so the
// stream-sum/triad arithmetic hot loops aren't dominated by byte-wise
// bounds checks.
func asWords(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

// memcpyLibc implements "block copy between halves", R:W 1:1.
func memcpyLibc(s *State) {
	half := len(s.Arena) / 2
	src, dst := s.Arena[:half], s.Arena[half:2*half]
	for !s.stopped() {
		copy(dst, src)
		s.loops++
		s.closeInterval(int64(2 * half))
	}
}

// memsetLibc implements "block write non-zero", R:W 0:1.
func memsetLibc(s *State) {
	buf := s.Arena
	for !s.stopped() {
		fill(buf, 0xA5)
		s.loops++
		s.closeInterval(int64(len(buf)))
	}
}

// memsetzLibc implements "block write zero", R:W 0:1.
func memsetzLibc(s *State) {
	buf := s.Arena
	for !s.stopped() {
		clear(buf)
		s.loops++
		s.closeInterval(int64(len(buf)))
	}
}

func fill(buf []byte, v byte) {
	if len(buf) == 0 {
		return
	}
	buf[0] = v
	for i := 1; i < len(buf); i *= 2 {
		copy(buf[i:], buf[:i])
	}
}

// streamCopy implements "b[i] = a[i]" over a double array, R:W 1:1.
func streamCopy(s *State) {
	half := len(s.Arena) / 2
	a := asWords(s.Arena[:half])
	b := asWords(s.Arena[half : 2*half])
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for !s.stopped() {
		for i := 0; i < n; i++ {
			b[i] = a[i]
		}
		s.loops++
		s.closeInterval(int64(2 * n * 8))
	}
}

// streamSum implements "s += a[i]", R:W 1:0.
func streamSum(s *State) {
	a := asWords(s.Arena)
	var sum uint64
	for !s.stopped() {
		for i := range a {
			sum += a[i]
		}
		s.loops++
		s.closeInterval(int64(len(a) * 8))
	}
	sumSink.Store(sum)
}

// sumSink keeps streamSum's accumulator live across the (production:
// unbounded) loop so the compiler can't prove the reduction dead, the same
// rationale as internal/chase's workSink.
var sumSink atomic.Uint64

// streamTriad implements "a[i] = b[i] + scalar * c[i]" over three aligned
// buffers, R:W 2:1.
func streamTriad(s *State) {
	third := len(s.Arena) / 3
	a := asWords(s.Arena[:third])
	b := asWords(s.Arena[third : 2*third])
	c := asWords(s.Arena[2*third : 3*third])
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(c) < n {
		n = len(c)
	}
	const scalar = 3
	for !s.stopped() {
		for i := 0; i < n; i++ {
			a[i] = b[i] + scalar*c[i]
		}
		s.loops++
		s.closeInterval(int64(3 * n * 8))
	}
}
