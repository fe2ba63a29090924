// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build !linux

package numa

import "fmt"

// bindNode has no portable equivalent outside Linux's mbind(2); non-Linux
// builds always return an error, which internal/arena.Alloc passes back to
// its caller, so "-W" makes the arena allocation fail on these platforms.
func bindNode(addr uintptr, length int, node int) error {
	return fmt.Errorf("numa: weighted NUMA binding requires linux (mbind)")
}
