// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

// NewX86_64 returns the x86-64 Architecture Adapter. Register convention
// per spec.md §4.A: rsi/rdi for the testcase area/size pair. The magic
// index selector register is rax, per this module's resolution of spec.md
// §9 Open Question 2: Simics's own CPUID-based magic-instruction
// convention carries its command selector in eax/rax on x86, distinct
// from the testcase-buffer pair.
func NewX86_64() Adapter {
	return &base{
		name:                 "x86-64",
		pcRegister:           "rip",
		testcaseAreaRegister: "rsi",
		testcaseSizeRegister: "rdi",
		magicIndexRegister:   "rax",
		pointerWidthBytes:    8,
	}
}
