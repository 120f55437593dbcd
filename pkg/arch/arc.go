// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

// NewARC returns the ARC Architecture Adapter. Register convention per
// spec.md §4.A: r0/r1.
func NewARC() Adapter {
	return &base{
		name:                 "arc",
		pcRegister:           "pc",
		testcaseAreaRegister: "r0",
		testcaseSizeRegister: "r1",
		magicIndexRegister:   "r0",
		pointerWidthBytes:    4,
	}
}
