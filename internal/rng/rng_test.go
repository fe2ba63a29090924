// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package rng

import "testing"

func TestLCGDeterministic(t *testing.T) {
	a := NewLCG(7)
	b := NewLCG(7)
	for i := 0; i < 1000; i++ {
		va := a.Int(999)
		vb := b.Int(999)
		if va != vb {
			t.Fatalf("draw %d: got %d and %d from two LCGs seeded with the same thread_num", i, va, vb)
		}
	}
}

func TestLCGBounds(t *testing.T) {
	g := NewLCG(1)
	for i := 0; i < 10000; i++ {
		v := g.Int(17)
		if v > 17 {
			t.Fatalf("draw %d: %d exceeds limit 17", i, v)
		}
	}
}

func TestLCGDifferentSeeds(t *testing.T) {
	a := NewLCG(0)
	b := NewLCG(1)
	same := 0
	const n = 64
	for i := 0; i < n; i++ {
		if a.Int(1<<31) == b.Int(1<<31) {
			same++
		}
	}
	if same == n {
		t.Fatalf("thread 0 and thread 1 produced identical sequences")
	}
}

func TestPlatformDeterministic(t *testing.T) {
	a := NewPlatform(42)
	b := NewPlatform(42)
	for i := 0; i < 1000; i++ {
		va := a.Int(1 << 20)
		vb := b.Int(1 << 20)
		if va != vb {
			t.Fatalf("draw %d: got %d and %d from two Platform RNGs seeded with the same thread_num", i, va, vb)
		}
	}
}

func TestPlatformBounds(t *testing.T) {
	p := NewPlatform(3)
	for i := 0; i < 10000; i++ {
		v := p.Int(5)
		if v > 5 {
			t.Fatalf("draw %d: %d exceeds limit 5", i, v)
		}
	}
}

func TestPlatformZeroLimit(t *testing.T) {
	p := NewPlatform(0)
	for i := 0; i < 8; i++ {
		if v := p.Int(0); v != 0 {
			t.Fatalf("Int(0) = %d, want 0", v)
		}
	}
}
