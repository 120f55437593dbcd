// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package arch

import (
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
)

// base implements everything in Adapter that is generic across ISAs,
// leaving only the per-ISA register-convention table and an optional
// injected Disassembler to the concrete types. This mirrors the teacher's
// preference for small concrete types over one god-struct: each ISA file
// below is a handful of constants plus a constructor.
type base struct {
	name                 string
	pcRegister           string
	testcaseAreaRegister string
	testcaseSizeRegister string
	magicIndexRegister   string
	pointerWidthBytes    int
	disasm               Disassembler
}

func (b *base) Name() string { return b.name }

func (b *base) GetProgramCounter(sim simapi.Simulator, cpu *simapi.ConfObject) (uint64, error) {
	return b.ReadRegisterByName(sim, cpu, b.pcRegister)
}

func (b *base) ReadRegisterByName(sim simapi.Simulator, cpu *simapi.ConfObject, name string) (uint64, error) {
	v, err := sim.ReadRegisterByName(cpu, name)
	if err != nil {
		return 0, serr.Wrap(serr.SimulatorApiError, err, "reading register %s", name)
	}
	return v, nil
}

func (b *base) TranslateVirtualToPhysical(sim simapi.Simulator, cpu *simapi.ConfObject, logical uint64, access simapi.Access) (simapi.PhysicalAddress, error) {
	p, err := sim.TranslateVirtualToPhysical(cpu, logical, access)
	if err != nil {
		return simapi.PhysicalAddress{}, serr.Wrap(serr.SimulatorApiError, err, "translating address 0x%x", logical)
	}
	return p, nil
}

func (b *base) WriteGuestByte(sim simapi.Simulator, cpu *simapi.ConfObject, physicalAddress uint64, v byte) error {
	if err := sim.WriteGuestByte(cpu, physicalAddress, v); err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "writing guest byte at 0x%x", physicalAddress)
	}
	return nil
}

func (b *base) LogicalAddressWidthBits(sim simapi.Simulator, cpu *simapi.ConfObject) (int, error) {
	w, err := sim.LogicalAddressWidthBits(cpu)
	if err != nil {
		return 0, serr.Wrap(serr.SimulatorApiError, err, "reading logical address width")
	}
	return w, nil
}

func (b *base) DisassembleOne(bytes []byte, pc uint64) (Classification, error) {
	if b.disasm == nil {
		return Classification{}, serr.New(serr.ConfigError, "no disassembler configured for architecture %s", b.name)
	}
	return b.disasm.DisassembleOne(bytes, pc)
}

// ClassifyInstruction is a pass-through hook: adapters with architecture
// quirks (e.g. conditional execution) override it; the default trusts the
// disassembler's own classification.
func (b *base) ClassifyInstruction(c Classification) Classification { return c }

func (b *base) PointerWidthBytes() int { return b.pointerWidthBytes }

func (b *base) TestcaseAreaRegister() string { return b.testcaseAreaRegister }
func (b *base) TestcaseSizeRegister() string { return b.testcaseSizeRegister }
func (b *base) MagicIndexRegister() string   { return b.magicIndexRegister }

// WithDisassembler returns a copy of the adapter using d for
// DisassembleOne. Used by embedders that link a real decoder.
func WithDisassembler(a Adapter, d Disassembler) Adapter {
	if setter, ok := a.(interface{ setDisassembler(Disassembler) }); ok {
		setter.setDisassembler(d)
	}
	return a
}

func (b *base) setDisassembler(d Disassembler) { b.disasm = d }
