// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

// NewARMv8 returns the AArch64 (ARMv8 64-bit) Architecture Adapter.
// Register convention per spec.md §4.A: x0/x1.
func NewARMv8() Adapter {
	return &base{
		name:                 "armv8",
		pcRegister:           "pc",
		testcaseAreaRegister: "x0",
		testcaseSizeRegister: "x1",
		magicIndexRegister:   "x0",
		pointerWidthBytes:    8,
	}
}
