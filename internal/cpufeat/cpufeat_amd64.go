// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package cpufeat

import "golang.org/x/sys/cpu"

func init() {
	currentArch = ArchAMD64
	if Disabled() {
		return
	}
	// SSE2 is part of the amd64 baseline ABI; prefetch and 128-bit loads
	// are always available. Non-temporal loads (movntdqa) need SSE4.1.
	hasPrefetch = true
	hasSSE2OrNEON = true
	hasNonTemporal = cpu.X86.HasSSE41
	// movabs+jmp/ret branch-chase slot, per spec.md 6.
	branchChaseWidth = 12
}
