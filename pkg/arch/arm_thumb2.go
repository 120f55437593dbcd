// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

// NewARMThumb2 returns the ARM Thumb-2 Architecture Adapter. It shares
// ARM's register file and convention (r0/r1); only the instruction
// encoding it hands to the Disassembler differs, which is the
// Disassembler implementation's concern, not this adapter's.
func NewARMThumb2() Adapter {
	return &base{
		name:                 "arm-thumb2",
		pcRegister:           "r15",
		testcaseAreaRegister: "r0",
		testcaseSizeRegister: "r1",
		magicIndexRegister:   "r0",
		pointerWidthBytes:    4,
	}
}
