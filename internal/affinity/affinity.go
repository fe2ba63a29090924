// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package affinity resolves the process's allowed CPU set and pins the
// calling OS thread to a single CPU from it, mirroring the runner's worker
// startup sequence in spec.md 4.I step 5: "pick the i-th CPU from the
// process affinity mask, set its own affinity to only that CPU (fatal if
// insufficient CPUs)".
package affinity

import (
	"fmt"
	"strconv"
	"strings"
)

// CPUSet lists the CPUs available to this process, in a stable order.
type CPUSet []int

// ProcessCPUs returns the CPUs in the process's current affinity mask.
func ProcessCPUs() (CPUSet, error) {
	return processCPUs()
}

// Nth returns the i-th CPU in the set, erroring if i is out of range —
// the "fatal if insufficient CPUs" case from spec.md 4.I.
func (s CPUSet) Nth(i int) (int, error) {
	if i < 0 || i >= len(s) {
		return 0, fmt.Errorf("affinity: requested CPU index %d, but process affinity mask has only %d CPUs", i, len(s))
	}
	return s[i], nil
}

// ParseMask parses a "-d mask" argument (spec.md 6, ping-pong tool) of
// comma-separated CPU ids, e.g. "0,2,4,6", into a CPUSet.
func ParseMask(mask string) (CPUSet, error) {
	parts := strings.Split(mask, ",")
	out := make(CPUSet, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		cpu, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("affinity: invalid CPU id %q in mask %q: %w", p, mask, err)
		}
		out = append(out, cpu)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("affinity: mask %q names no CPUs", mask)
	}
	return out, nil
}

// PinSelf restricts the calling OS thread's affinity to exactly cpu.
// Callers must have already called runtime.LockOSThread.
func PinSelf(cpu int) error {
	return pinSelf(cpu)
}
