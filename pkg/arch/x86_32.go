// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

// NewX86_32 returns the x86-32 (i386 and compatible) Architecture
// Adapter. Register convention per spec.md §4.A: esi/edi.
func NewX86_32() Adapter {
	return &base{
		name:                 "i386",
		pcRegister:           "eip",
		testcaseAreaRegister: "esi",
		testcaseSizeRegister: "edi",
		magicIndexRegister:   "eax",
		pointerWidthBytes:    4,
	}
}
