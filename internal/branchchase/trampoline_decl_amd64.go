// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package branchchase

// callMachineCode calls the code at addr (the rewritten cycle's current
// entry) and returns whatever address ends up in the return-value
// register when that code eventually executes its chunk-boundary RET,
// per spec.md 8 property 8 ("treating head as a function that returns a
// function pointer"). Implemented in trampoline_amd64.s.
func callMachineCode(addr uintptr) uintptr
