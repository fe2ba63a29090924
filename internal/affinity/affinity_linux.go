// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func processCPUs() (CPUSet, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("sched_getaffinity: %w", err)
	}
	var cpus CPUSet
	for i := 0; i < unix.CPU_SETSIZE; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}

func pinSelf(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity(cpu=%d): %w", cpu, err)
	}
	return nil
}
