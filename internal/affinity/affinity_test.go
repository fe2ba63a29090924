// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package affinity

import "testing"

func TestProcessCPUsNonEmpty(t *testing.T) {
	cpus, err := ProcessCPUs()
	if err != nil {
		t.Fatalf("ProcessCPUs: %v", err)
	}
	if len(cpus) == 0 {
		t.Fatal("ProcessCPUs returned an empty set")
	}
}

func TestNthOutOfRange(t *testing.T) {
	s := CPUSet{0, 1, 2}
	if _, err := s.Nth(3); err == nil {
		t.Fatal("expected an error for an out-of-range CPU index")
	}
	if _, err := s.Nth(-1); err == nil {
		t.Fatal("expected an error for a negative CPU index")
	}
	if got, err := s.Nth(1); err != nil || got != 1 {
		t.Fatalf("Nth(1) = (%d, %v), want (1, nil)", got, err)
	}
}

func TestPinSelf(t *testing.T) {
	cpus, err := ProcessCPUs()
	if err != nil {
		t.Fatalf("ProcessCPUs: %v", err)
	}
	if err := PinSelf(cpus[0]); err != nil {
		t.Fatalf("PinSelf(%d): %v", cpus[0], err)
	}
}
