// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package permute

import (
	"testing"

	"github.com/cloudbench/multichase/internal/rng"
)

func TestGenRandomIsPermutation(t *testing.T) {
	for _, nr := range []int{1, 2, 3, 8, 17, 1000} {
		src := rng.NewLCG(nr)
		out := make([]int64, nr)
		GenRandom(out, 0, src)
		if !IsPermutation(out, 0) {
			t.Fatalf("nr=%d: GenRandom output is not a permutation: %v", nr, out)
		}
	}
}

func TestGenRandomDeterministic(t *testing.T) {
	const nr = 256
	a := make([]int64, nr)
	b := make([]int64, nr)
	GenRandom(a, 0, rng.NewLCG(5))
	GenRandom(b, 0, rng.NewLCG(5))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("index %d: %d != %d for two permutations built from the same seed", i, a[i], b[i])
		}
	}
}

func TestGenRandomNonzeroBase(t *testing.T) {
	const base, nr = 100, 32
	out := make([]int64, nr)
	GenRandom(out, base, rng.NewLCG(1))
	if !IsPermutation(out, base) {
		t.Fatalf("GenRandom with base=%d is not a permutation: %v", base, out)
	}
}

func TestGenOrdered(t *testing.T) {
	out := make([]int64, 8)
	GenOrdered(out, 10)
	for i, v := range out {
		if v != int64(10+i) {
			t.Fatalf("index %d: got %d, want %d", i, v, 10+i)
		}
	}
	if !IsPermutation(out, 10) {
		t.Fatal("ordered permutation failed IsPermutation")
	}
}

func TestIsPermutationRejectsDuplicates(t *testing.T) {
	p := []int64{0, 1, 1, 3}
	if IsPermutation(p, 0) {
		t.Fatal("IsPermutation accepted a slice with a duplicate")
	}
}

func TestIsPermutationRejectsOutOfRange(t *testing.T) {
	p := []int64{0, 1, 2, 99}
	if IsPermutation(p, 0) {
		t.Fatal("IsPermutation accepted a slice with an out-of-range value")
	}
}
