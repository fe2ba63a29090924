// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package arena acquires the page-aligned, optionally huge-paged,
// optionally NUMA-interleaved anonymous region the chase and bandwidth
// kernels run against (spec.md 4.A). The region is zeroed by the OS mmap
// guarantee and is never freed for the lifetime of the process.
package arena

import (
	"fmt"
)

// Region is a single allocated arena.
type Region struct {
	Bytes    []byte
	PageSize int64
}

// Config describes how to allocate a Region.
type Config struct {
	Size     int64 // requested size in bytes; rounded up to PageSize
	PageSize int64 // 0 means NativePageSize()
	UseTHP   bool  // request transparent huge pages at the native page size
	// NUMAWeights, when non-nil, binds pages to nodes sampled from this
	// cumulative weight distribution (see internal/numa). Ignored when nil.
	NUMAWeights NUMABinder
}

// NUMABinder binds a single page (identified by its starting address) to a
// NUMA node chosen by the binder's own weighted policy. internal/numa
// implements this; arena only depends on the interface so the two packages
// don't import each other's platform-specific halves.
type NUMABinder interface {
	BindPage(addr uintptr, length int) error
}

// ceilDiv rounds size up to the next multiple of page.
func ceilDiv(size, page int64) int64 {
	if page <= 0 {
		return size
	}
	return ((size + page - 1) / page) * page
}

// Alloc allocates a zeroed, readable/writable anonymous region of at least
// ceil(cfg.Size, pageSize) bytes, per the contract in spec.md 4.A. Any OS
// failure is fatal per spec.md 7b; callers at the cmd/ layer are expected
// to log.Fatal on error rather than attempt recovery.
func Alloc(cfg Config) (*Region, error) {
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = NativePageSize()
	}
	if IsHuge(pageSize) && cfg.UseTHP {
		return nil, fmt.Errorf("arena: use_thp is incompatible with a non-native page_size %d", pageSize)
	}
	size := ceilDiv(cfg.Size, pageSize)

	b, err := mmapAnon(size, pageSize)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes (page_size=%d): %w", size, pageSize, err)
	}

	if IsHuge(pageSize) {
		// OS hugetlb mapping already requested the right page size via
		// mmapAnon; nothing further to advise.
	} else if cfg.UseTHP {
		if err := enableTHP(b); err != nil {
			return nil, fmt.Errorf("arena: enable THP: %w", err)
		}
	} else {
		if err := disableTHP(b); err != nil {
			return nil, fmt.Errorf("arena: disable THP: %w", err)
		}
	}

	if cfg.NUMAWeights != nil {
		for off := int64(0); off < size; off += pageSize {
			end := off + pageSize
			if end > int64(len(b)) {
				end = int64(len(b))
			}
			page := b[off:end]
			if err := cfg.NUMAWeights.BindPage(addrOf(page), len(page)); err != nil {
				return nil, fmt.Errorf("arena: NUMA bind page at offset %d: %w", off, err)
			}
			// Touch the first byte so the binding is realized
			// immediately rather than on first fault.
			page[0] = 0
		}
	}

	return &Region{Bytes: b, PageSize: pageSize}, nil
}
