// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

// NewRISCV returns the RISC-V Architecture Adapter. Register convention
// per spec.md §4.A: x10/x11 (the first two standard argument registers,
// a0/a1). The magic index register is the same a0/x10, matching RISC-V's
// usual ecall-convention of passing a selector in a0.
func NewRISCV() Adapter {
	return &base{
		name:                 "risc-v",
		pcRegister:           "pc",
		testcaseAreaRegister: "x10",
		testcaseSizeRegister: "x11",
		magicIndexRegister:   "x10",
		pointerWidthBytes:    8,
	}
}
