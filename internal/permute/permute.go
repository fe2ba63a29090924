// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package permute builds and verifies permutations over contiguous integer
// ranges, the building block for both TLB-group ordering and mixer columns.
package permute

import "github.com/cloudbench/multichase/internal/rng"

// GenRandom fills out[0:nr] with a uniform random permutation of
// {base, base+1, ..., base+nr-1} using Fisher-Yates inside-out: for i in
// [0, nr), draw t uniformly in [0, i], set out[i] = out[t], set out[t] =
// base+i. Uniformity is a correctness property (spec.md 4.C).
func GenRandom(out []int64, base int64, src rng.Source) {
	nr := len(out)
	for i := 0; i < nr; i++ {
		t := int(src.Int(uint64(i)))
		out[i] = out[t]
		out[t] = base + int64(i)
	}
}

// GenOrdered fills out[0:nr] with the identity permutation out[i] = base+i.
func GenOrdered(out []int64, base int64) {
	for i := range out {
		out[i] = base + int64(i)
	}
}

// IsPermutation verifies that p is a bijection onto {base, ..., base+nr-1}
// via a bitset, per spec.md 4.C.
func IsPermutation(p []int64, base int64) bool {
	nr := len(p)
	seen := make([]bool, nr)
	for _, v := range p {
		idx := v - base
		if idx < 0 || idx >= int64(nr) {
			return false
		}
		if seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}
