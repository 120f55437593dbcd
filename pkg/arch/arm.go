// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

// NewARM returns the 32-bit ARM (A32) Architecture Adapter. Register
// convention per spec.md §4.A: r0/r1.
func NewARM() Adapter {
	return &base{
		name:                 "arm",
		pcRegister:           "r15",
		testcaseAreaRegister: "r0",
		testcaseSizeRegister: "r1",
		magicIndexRegister:   "r0",
		pointerWidthBytes:    4,
	}
}
