// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package cpufeat

func init() {
	currentArch = ArchARM64
	if Disabled() {
		return
	}
	// NEON is mandatory on arm64; there is no architectural prefetch
	// intrinsic exposed the way x86 PREFETCHt0/t1/t2/NTA is, so the
	// prefetch* kernel variants are not offered here.
	hasPrefetch = false
	hasSSE2OrNEON = true
	hasNonTemporal = true // LDNP is the NEON non-temporal-pair analogue
	// MOVZ/MOVK x3 + BR|RET branch-chase slot, per spec.md 6.
	branchChaseWidth = 16
}
