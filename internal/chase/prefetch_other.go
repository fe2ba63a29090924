// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build !amd64

package chase

// PrefetchT0/T1/T2/NTA have no non-amd64 implementation; ParseWorkload's
// cpufeat.HasPrefetch gate means these are never reached at runtime on
// other architectures, but the package must still link on every GOARCH.
func PrefetchT0(s *State)  { Simple(s) }
func PrefetchT1(s *State)  { Simple(s) }
func PrefetchT2(s *State)  { Simple(s) }
func PrefetchNTA(s *State) { Simple(s) }
