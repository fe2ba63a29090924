// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build !linux

package affinity

import "runtime"

// Non-Linux platforms (darwin, in particular) don't expose a portable
// sched_setaffinity equivalent through golang.org/x/sys/unix; here
// ProcessCPUs reports CPUs 0..runtime.NumCPU()-1 and PinSelf is a silent
// no-op.
func processCPUs() (CPUSet, error) {
	n := runtime.NumCPU()
	cpus := make(CPUSet, n)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus, nil
}

func pinSelf(cpu int) error {
	return nil
}
