// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package arena

import (
	"fmt"
	"os"
	"strconv"
	"strings"
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
	flags := unix.MAP_ANONYMOUS | unix.MAP_PRIVATE
	if IsHuge(pageSize) {
		shift, err := hugePageShift(pageSize)
		if err != nil {
			return nil, err
		}
		flags |= unix.MAP_HUGETLB | (shift << unixMapHugeShift)
	}
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return b, nil
}

// unixMapHugeShift mirrors MAP_HUGE_SHIFT from <linux/mman.h>, exposed by
// golang.org/x/sys/unix only on some architectures; hard-coding it here
// keeps this file buildable across the unix package's various levels of
// constant coverage.
const unixMapHugeShift = 26

func hugePageShift(pageSize int64) (int, error) {
	shift := 0
	for p := pageSize; p > 1; p >>= 1 {
		shift++
	}
	if int64(1)<<shift != pageSize {
		return 0, fmt.Errorf("huge page size %d is not a power of two", pageSize)
	}
	return shift, nil
}

// DefaultHugePageSize parses /proc/meminfo's Hugepagesize line, the
// mechanism spec.md 6 calls out for discovering the default SHM huge page
// size.
func DefaultHugePageSize() (int64, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("read /proc/meminfo: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "Hugepagesize:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse Hugepagesize line %q: %w", line, err)
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("no Hugepagesize line in /proc/meminfo")
}

const (
	thpEnabledPath = "/sys/kernel/mm/transparent_hugepage/enabled"
	thpDefragPath  = "/sys/kernel/mm/transparent_hugepage/defrag"
)

var thpEnabledPolicies = []string{"always", "madvise"}
var thpDefragPolicies = []string{"always", "defer+madvise", "madvise"}

func enableTHP(b []byte) error {
	if err := ensureSysfsPolicy(thpEnabledPath, thpEnabledPolicies); err != nil {
		return err
	}
	if err := ensureSysfsPolicy(thpDefragPath, thpDefragPolicies); err != nil {
		return err
	}
	return unix.Madvise(b, unix.MADV_HUGEPAGE)
}

func disableTHP(b []byte) error {
	return unix.Madvise(b, unix.MADV_NOHUGEPAGE)
}

// ensureSysfsPolicy reads a THP policy file (whose contents look like
// "always [madvise] never") and, if the bracketed current choice isn't one
// of want, rewrites the file to the first acceptable choice.
func ensureSysfsPolicy(path string, want []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		// Non-Linux-like environments (containers without the sysfs
		// knob, e.g. under gVisor) simply don't have this file; THP
		// advice still works via madvise without the sysfs nudge.
		return nil
	}
	current := strings.TrimSpace(string(data))
	for _, w := range want {
		if strings.Contains(current, "["+w+"]") {
			return nil
		}
	}
	if len(want) == 0 {
		return nil
	}
	return os.WriteFile(path, []byte(want[0]), 0o644)
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
