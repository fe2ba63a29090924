// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build !amd64 && !arm64

package cpufeat

func init() {
	currentArch = ArchOther
	// No architecture-specific kernels outside amd64/arm64; simple,
	// parallelN, work:K, incr, critword*, and the bandwidth kernels are
	// all pure Go and remain available everywhere.
}
