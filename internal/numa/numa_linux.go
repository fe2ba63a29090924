// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build linux

package numa

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// bindNode issues mbind(MPOL_BIND) over [addr, addr+length) restricting
// that page to exactly one NUMA node. multichase links against
// golang.org/x/sys/unix rather than libnuma: mbind is a single raw
// syscall, so there is no need for the full libnuma policy surface.
func bindNode(addr uintptr, length int, node int) error {
	if node < 0 || node >= 64 {
		return fmt.Errorf("numa: node %d out of range for a single uint64 mask word", node)
	}
	mask := uint64(1) << uint(node)
	_, _, errno := unix.Syscall6(
		unix.SYS_MBIND,
		addr,
		uintptr(length),
		uintptr(mposBind),
		uintptr(unsafe.Pointer(&mask)),
		unsafe.Sizeof(mask)*8,
		0,
	)
	if errno != 0 {
		return fmt.Errorf("mbind(node=%d): %w", node, errno)
	}
	return nil
}

// mposBind is MPOL_BIND from <linux/mempolicy.h>.
const mposBind = 2
