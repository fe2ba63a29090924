// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

package branchchase

import "encoding/binary"

// emitAMD64 encodes "movabs rax, target" followed by either "jmp rax" or
// "ret", per spec.md 6: "48 B8 <imm64> then either FF E0 (jmp rax) or C3
// (ret); 12-byte slot."
func emitAMD64(target uint64, ret bool) []byte {
	buf := make([]byte, 12)
	buf[0], buf[1] = 0x48, 0xB8
	binary.LittleEndian.PutUint64(buf[2:10], target)
	if ret {
		buf[10], buf[11] = 0xC3, 0x90 // RET, then a NOP pad to fill the 12-byte slot
	} else {
		buf[10], buf[11] = 0xFF, 0xE0 // JMP RAX
	}
	return buf
}
