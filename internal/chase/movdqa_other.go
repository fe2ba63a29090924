// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

//go:build !amd64

package chase

// MovDQA/MovNTDQA have no non-amd64 implementation; ParseWorkload's
// cpufeat.HasSIMD128/HasNonTemporal gates mean these are never reached at
// runtime on other architectures, but the package must still link on
// every GOARCH.
func MovDQA(s *State)   { Simple(s) }
func MovNTDQA(s *State) { Simple(s) }
