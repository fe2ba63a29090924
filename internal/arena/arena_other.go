// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build !linux

package arena

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NativePageSize returns the host's native page size.
func NativePageSize() int64 {
	return int64(os.Getpagesize())
}

// IsHuge reports whether pageSize is larger than the native page size.
func IsHuge(pageSize int64) bool {
	return pageSize > NativePageSize()
}

func mmapAnon(size, pageSize int64) ([]byte, error) {
	if IsHuge(pageSize) {
		return nil, fmt.Errorf("huge pages are only supported on linux")
	}
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return b, nil
}

// DefaultHugePageSize is unavailable outside Linux.
func DefaultHugePageSize() (int64, error) {
	return 0, fmt.Errorf("huge page discovery requires /proc/meminfo (linux only)")
}

func enableTHP(b []byte) error {
	// Best-effort: advise MADV_WILLNEED, since transparent huge pages are
	// a Linux-specific kernel feature with no portable equivalent.
	return unix.Madvise(b, unix.MADV_WILLNEED)
}

func disableTHP(b []byte) error {
	return nil
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
