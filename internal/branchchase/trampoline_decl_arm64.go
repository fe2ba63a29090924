// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package branchchase

// callMachineCode calls the code at addr and returns the address left in
// the return-value register at the rewritten cycle's chunk-boundary RET.
// Implemented in trampoline_arm64.s.
func callMachineCode(addr uintptr) uintptr
