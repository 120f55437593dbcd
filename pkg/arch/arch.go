// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package arch implements the Architecture Adapter (component A of
// spec.md §4.A): a per-ISA capability set for reading registers,
// translating addresses, writing guest bytes, and classifying
// instructions. Concrete disassembly bodies are out of scope per spec.md
// §1; each adapter is constructed with a Disassembler it calls into, the
// way the teacher's own cover tracer is constructed around an injected
// signal sink rather than owning its I/O.
package arch

import (
	"fmt"
	"strings"

	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
)

// ExprKind tags a node of the reduced-form comparison operand expression
// tree of spec.md §4.A.
type ExprKind int

const (
	ExprDeref ExprKind = iota
	ExprReg
	ExprAdd
	ExprSub
	ExprMul
	ExprShift
	ExprImm
	ExprAddr
)

// ShiftKind enumerates the four shift forms the expression tree supports.
type ShiftKind int

const (
	ShiftLSL ShiftKind = iota
	ShiftLSR
	ShiftASR
	ShiftROR
)

// Expr is a comparison operand expression, possibly only partially
// reduced by the adapter; pkg/driver's reduceExpr performs the final
// reduction to a concrete integer.
type Expr struct {
	Kind   ExprKind
	Width  int // bit width, 0 if not applicable
	Reg    string
	Imm    uint64
	Addr   uint64
	Shift  ShiftKind
	Left   *Expr
	Right  *Expr
}

// CmpAttribute mirrors AFL++'s comparison-type attribute bitfield.
type CmpAttribute int

const (
	CmpEqual  CmpAttribute = 1 << 0
	CmpGreater CmpAttribute = 1 << 1
	CmpLesser CmpAttribute = 1 << 2
)

// Classification is what disassemble-and-classify produces for one
// instruction (spec.md §4.A).
type Classification struct {
	IsCall        bool
	IsControlFlow bool
	IsRet         bool
	IsCmp         bool
	CmpLeft       *Expr
	CmpRight      *Expr
	CmpAttribute  CmpAttribute
	Mnemonic      string
	Length        int
}

// Disassembler is the pluggable, architecture-specific decoder body.
// simcore ships no concrete implementation; it is supplied by whatever
// embeds this package against a real disassembly library, matching
// spec.md §1's "architecture-specific disassembly bodies" exclusion.
type Disassembler interface {
	// DisassembleOne decodes the single instruction at the front of
	// bytes and returns its classification plus the number of bytes
	// consumed (mirrored into Classification.Length).
	DisassembleOne(bytes []byte, pc uint64) (Classification, error)
}

// Adapter is the capability set of spec.md §4.A, one per ISA.
type Adapter interface {
	Name() string

	GetProgramCounter(sim simapi.Simulator, cpu *simapi.ConfObject) (uint64, error)
	ReadRegisterByName(sim simapi.Simulator, cpu *simapi.ConfObject, name string) (uint64, error)
	TranslateVirtualToPhysical(sim simapi.Simulator, cpu *simapi.ConfObject, logical uint64, access simapi.Access) (simapi.PhysicalAddress, error)
	WriteGuestByte(sim simapi.Simulator, cpu *simapi.ConfObject, physicalAddress uint64, b byte) error
	LogicalAddressWidthBits(sim simapi.Simulator, cpu *simapi.ConfObject) (int, error)

	DisassembleOne(bytes []byte, pc uint64) (Classification, error)
	ClassifyInstruction(c Classification) Classification

	// PointerWidthBytes is the width used for StartSize writeback and the
	// default operand width in cmp reduction when none is known.
	PointerWidthBytes() int

	// TestcaseAreaRegister and TestcaseSizeRegister are the two canonical
	// register names declared by spec.md §4.A for magic start extraction.
	TestcaseAreaRegister() string
	TestcaseSizeRegister() string

	// MagicIndexRegister is the architecture-defined convention register
	// the magic index selector is read from (spec.md §4.A, "Magic index
	// selector"); by convention this is the same register used as the
	// first argument in the architecture's standard magic convention.
	MagicIndexRegister() string
}

// StartBuffer is the data model type of spec.md §3.
type StartBuffer struct {
	PhysicalAddress uint64
	WasVirtual      bool
}

// StartSizeKind tags the three StartSize variants of spec.md §3.
type StartSizeKind int

const (
	StartSizeNone StartSizeKind = iota
	StartSizeMaximumOnly
	StartSizeAddress
)

// StartSize is the data model type of spec.md §3.
type StartSize struct {
	Kind            StartSizeKind
	MaximumOnly     uint64
	PhysicalAddress uint64
	WasVirtual      bool
	InitialCap      uint64
}

// Cap returns the effective truncation cap for this StartSize, or
// (0, false) for StartSizeNone, meaning no buffer is accepted at all.
func (s StartSize) Cap() (uint64, bool) {
	switch s.Kind {
	case StartSizeMaximumOnly:
		return s.MaximumOnly, true
	case StartSizeAddress:
		return s.InitialCap, true
	default:
		return 0, false
	}
}

// GetMagicStartBuffer implements the "Magic start buffer extraction"
// algorithm of spec.md §4.A for the testcase area pointer half.
func GetMagicStartBuffer(a Adapter, sim simapi.Simulator, cpu *simapi.ConfObject) (StartBuffer, error) {
	logical, err := a.ReadRegisterByName(sim, cpu, a.TestcaseAreaRegister())
	if err != nil {
		return StartBuffer{}, serr.Wrap(serr.SimulatorApiError, err, "reading testcase area register %s", a.TestcaseAreaRegister())
	}
	phys, err := a.TranslateVirtualToPhysical(sim, cpu, logical, simapi.AccessRead)
	if err != nil {
		return StartBuffer{}, serr.Wrap(serr.SimulatorApiError, err, "translating testcase area address")
	}
	if !phys.Valid {
		return StartBuffer{}, serr.New(serr.GuestAddressError, "invalid linear address 0x%x in register %s", logical, a.TestcaseAreaRegister())
	}
	return StartBuffer{PhysicalAddress: phys.Address, WasVirtual: phys.Address != logical}, nil
}

// GetMagicStartSize implements the size half of the same algorithm,
// branching on the MagicKind the way spec.md §4.A describes: the size
// register is either a pointer to the cap (StartBufPtrSizePtr,
// StartBufPtrSizePtrVal) or the cap value itself (StartBufPtrSizeVal).
func GetMagicStartSize(a Adapter, sim simapi.Simulator, cpu *simapi.ConfObject, readsFromMemory bool) (StartSize, error) {
	logical, err := a.ReadRegisterByName(sim, cpu, a.TestcaseSizeRegister())
	if err != nil {
		return StartSize{}, serr.Wrap(serr.SimulatorApiError, err, "reading testcase size register %s", a.TestcaseSizeRegister())
	}
	if !readsFromMemory {
		return StartSize{Kind: StartSizeMaximumOnly, MaximumOnly: logical}, nil
	}
	phys, err := a.TranslateVirtualToPhysical(sim, cpu, logical, simapi.AccessRead)
	if err != nil {
		return StartSize{}, serr.Wrap(serr.SimulatorApiError, err, "translating testcase size address")
	}
	if !phys.Valid {
		return StartSize{}, serr.New(serr.GuestAddressError, "invalid linear address 0x%x in register %s", logical, a.TestcaseSizeRegister())
	}
	width, err := a.LogicalAddressWidthBits(sim, cpu)
	if err != nil {
		return StartSize{}, serr.Wrap(serr.SimulatorApiError, err, "reading logical address width")
	}
	cap, err := readLittleEndian(sim, cpu, a, phys.Address, width/8)
	if err != nil {
		return StartSize{}, err
	}
	return StartSize{
		Kind:            StartSizeAddress,
		PhysicalAddress: phys.Address,
		WasVirtual:      phys.Address != logical,
		InitialCap:      cap,
	}, nil
}

func readLittleEndian(sim simapi.Simulator, cpu *simapi.ConfObject, a Adapter, addr uint64, width int) (uint64, error) {
	var v uint64
	for i := 0; i < width; i++ {
		b, err := sim.ReadGuestByte(cpu, addr+uint64(i))
		if err != nil {
			return 0, serr.Wrap(serr.SimulatorApiError, err, "reading guest byte at 0x%x", addr+uint64(i))
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

// WriteStart implements the write-start protocol of spec.md §4.A.
func WriteStart(a Adapter, sim simapi.Simulator, cpu *simapi.ConfObject, testcase []byte, buf StartBuffer, size StartSize) (truncatedLen int, err error) {
	cap, bounded := size.Cap()
	n := len(testcase)
	if bounded && uint64(n) > cap {
		n = int(cap)
	}
	for i := 0; i < n; i++ {
		if err := a.WriteGuestByte(sim, cpu, buf.PhysicalAddress+uint64(i), testcase[i]); err != nil {
			return 0, serr.Wrap(serr.SimulatorApiError, err, "writing guest byte at 0x%x", buf.PhysicalAddress+uint64(i))
		}
	}
	if size.Kind == StartSizeAddress {
		width := a.PointerWidthBytes()
		v := uint64(n)
		for i := 0; i < width; i++ {
			b := byte(v >> (8 * i))
			if err := a.WriteGuestByte(sim, cpu, size.PhysicalAddress+uint64(i), b); err != nil {
				return 0, serr.Wrap(serr.SimulatorApiError, err, "writing size field at 0x%x", size.PhysicalAddress+uint64(i))
			}
		}
	}
	return n, nil
}

// Hint, when non-empty, overrides the simulator-reported architecture
// string for one processor, mirroring intel/tsffs's ArchitectureHint.
type Hint string

const (
	HintNone    Hint = ""
	HintX86_64  Hint = "x86-64"
	HintI386    Hint = "i386"
	HintRISCV   Hint = "risc-v"
)

func (h Hint) normalize() (string, error) {
	switch strings.ToLower(string(h)) {
	case "":
		return "", nil
	case "x86-64", "x86_64", "amd64":
		return "x86-64", nil
	case "i386", "i486", "i586", "i686", "ia-32", "x86":
		return "i386", nil
	case "riscv", "risc-v", "riscv32", "riscv64":
		return "risc-v", nil
	default:
		return "", fmt.Errorf("unknown architecture hint: %q", h)
	}
}

// registry maps a normalized architecture string to a constructor.
var registry = map[string]func() Adapter{
	"x86-64":      func() Adapter { return NewX86_64() },
	"i386":        func() Adapter { return NewX86_32() },
	"risc-v":      func() Adapter { return NewRISCV() },
	"arm":         func() Adapter { return NewARM() },
	"arm-thumb2":  func() Adapter { return NewARMThumb2() },
	"armv8":       func() Adapter { return NewARMv8() },
	"arc":         func() Adapter { return NewARC() },
}

// Resolve selects an Adapter by the simulator's reported architecture
// string, optionally overridden by hint (spec.md §4.A "selection is by
// the simulator's reported architecture string, optionally overridden by
// a per-processor hint", supplemented per SPEC_FULL.md §4 with the
// intel/tsffs ArchitectureHint override semantics).
func Resolve(reportedArch string, hint Hint) (Adapter, error) {
	key := strings.ToLower(reportedArch)
	if hint != HintNone {
		normalized, err := hint.normalize()
		if err != nil {
			return nil, serr.Wrap(serr.ConfigError, err, "resolving architecture hint")
		}
		if normalized != "" {
			key = normalized
		}
	}
	ctor, ok := registry[key]
	if !ok {
		return nil, serr.New(serr.ConfigError, "unsupported architecture %q", reportedArch)
	}
	return ctor(), nil
}
