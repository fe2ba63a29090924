// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package cpufeat

import "testing"

func TestCurrentArchIsSet(t *testing.T) {
	if CurrentArch().String() == "" {
		t.Fatal("CurrentArch().String() returned empty")
	}
}

func TestBranchChaseSlotSizeConsistency(t *testing.T) {
	// Either unsupported (0) or large enough to hold the immediate-load
	// plus the terminal branch/return instruction described in spec.md 6.
	if w := BranchChaseSlotSize(); w != 0 && w < 10 {
		t.Fatalf("BranchChaseSlotSize() = %d, too small for any documented encoding", w)
	}
}
