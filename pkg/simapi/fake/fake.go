// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fake is an in-memory simapi.Simulator used by this module's own
// tests, matching simapi's documented intent: "test and replay builds
// back them with an in-memory fake" instead of a real simulator's cgo
// bridge.
package fake

import (
	"fmt"

	"github.com/sim-fuzz/simcore/pkg/simapi"
)

// Sim is a single-processor in-memory simulator double. It is not safe
// for concurrent use, matching the real simulator thread discipline the
// rest of the module assumes.
type Sim struct {
	Arch              string
	AddrWidthBits     int
	Registers         map[string]uint64
	Memory            map[uint64]byte
	VirtualIsIdentity bool

	magicCb       simapi.MagicCallback
	exceptionCb   simapi.ExceptionCallback
	breakpointCb  simapi.BreakpointCallback
	stoppedCb     simapi.StoppedCallback
	instrCb       simapi.InstructionExecuteCallback

	nextHandle uint64

	snapshots        map[string]bool
	microCheckpoints []simapi.MicroCheckpointInfo
	restoredMC       int
	discardedFuture  bool

	events      map[simapi.EventHandle]bool
	pendingCb   simapi.EventCallback
	pendingCpu  *simapi.ConfObject
	pendingData interface{}

	bookmarks map[string]bool

	ContinueCount int
	QuitCalled    bool
	QuitCode      int
	BreakRequested bool
}

func New(arch string, addrWidthBits int) *Sim {
	return &Sim{
		Arch:          arch,
		AddrWidthBits: addrWidthBits,
		Registers:     map[string]uint64{},
		Memory:        map[uint64]byte{},
		snapshots:     map[string]bool{},
		events:        map[simapi.EventHandle]bool{},
		bookmarks:     map[string]bool{},
	}
}

func (s *Sim) ReadRegisterByName(cpu *simapi.ConfObject, name string) (uint64, error) {
	return s.Registers[name], nil
}

func (s *Sim) WriteGuestByte(cpu *simapi.ConfObject, physicalAddress uint64, b byte) error {
	s.Memory[physicalAddress] = b
	return nil
}

func (s *Sim) ReadGuestByte(cpu *simapi.ConfObject, physicalAddress uint64) (byte, error) {
	return s.Memory[physicalAddress], nil
}

func (s *Sim) TranslateVirtualToPhysical(cpu *simapi.ConfObject, logicalAddress uint64, access simapi.Access) (simapi.PhysicalAddress, error) {
	if s.VirtualIsIdentity {
		return simapi.PhysicalAddress{Address: logicalAddress, Valid: true}, nil
	}
	return simapi.PhysicalAddress{Address: logicalAddress ^ 0x1000, Valid: true}, nil
}

func (s *Sim) ReportedArchitecture(cpu *simapi.ConfObject) (string, error) { return s.Arch, nil }

func (s *Sim) LogicalAddressWidthBits(cpu *simapi.ConfObject) (int, error) { return s.AddrWidthBits, nil }

func (s *Sim) ContinueSimulation() error {
	s.ContinueCount++
	return nil
}

func (s *Sim) RequestBreak() error {
	s.BreakRequested = true
	if s.stoppedCb != nil {
		s.stoppedCb()
	}
	return nil
}

func (s *Sim) Quit(code int) error {
	s.QuitCalled = true
	s.QuitCode = code
	return nil
}

func (s *Sim) SubscribeMagicInstruction(cb simapi.MagicCallback) (simapi.HapHandle, error) {
	s.magicCb = cb
	return s.handle(), nil
}
func (s *Sim) UnsubscribeMagicInstruction(h simapi.HapHandle) error { s.magicCb = nil; return nil }

func (s *Sim) SubscribeException(cb simapi.ExceptionCallback) (simapi.HapHandle, error) {
	s.exceptionCb = cb
	return s.handle(), nil
}
func (s *Sim) UnsubscribeException(h simapi.HapHandle) error { s.exceptionCb = nil; return nil }

func (s *Sim) SubscribeBreakpointMemop(cb simapi.BreakpointCallback) (simapi.HapHandle, error) {
	s.breakpointCb = cb
	return s.handle(), nil
}
func (s *Sim) UnsubscribeBreakpointMemop(h simapi.HapHandle) error { s.breakpointCb = nil; return nil }

func (s *Sim) SubscribeSimulationStopped(cb simapi.StoppedCallback) (simapi.HapHandle, error) {
	s.stoppedCb = cb
	return s.handle(), nil
}
func (s *Sim) UnsubscribeSimulationStopped(h simapi.HapHandle) error { s.stoppedCb = nil; return nil }

func (s *Sim) SubscribeInstructionExecute(cb simapi.InstructionExecuteCallback) (simapi.HapHandle, error) {
	s.instrCb = cb
	return s.handle(), nil
}
func (s *Sim) UnsubscribeInstructionExecute(h simapi.HapHandle) error { s.instrCb = nil; return nil }

func (s *Sim) handle() simapi.HapHandle {
	s.nextHandle++
	return simapi.HapHandle(s.nextHandle)
}

func (s *Sim) SaveSnapshot(name string) error {
	s.snapshots[name] = true
	return nil
}

func (s *Sim) RestoreSnapshot(name string) error {
	if !s.snapshots[name] {
		return fmt.Errorf("fake: no such snapshot %q", name)
	}
	return nil
}

func (s *Sim) SaveMicroCheckpoint(name string, flags simapi.MicroCheckpointFlags) error {
	s.microCheckpoints = append(s.microCheckpoints, simapi.MicroCheckpointInfo{Name: name, Index: len(s.microCheckpoints)})
	return nil
}

func (s *Sim) RestoreMicroCheckpoint(index int) error {
	if index < 0 || index >= len(s.microCheckpoints) {
		return fmt.Errorf("fake: no micro-checkpoint at index %d", index)
	}
	s.restoredMC = index
	return nil
}

func (s *Sim) DiscardFuture() error { s.discardedFuture = true; return nil }

func (s *Sim) ListMicroCheckpoints() ([]simapi.MicroCheckpointInfo, error) {
	return s.microCheckpoints, nil
}

func (s *Sim) PostEvent(cpu *simapi.ConfObject, seconds float64, data interface{}, cb simapi.EventCallback) (simapi.EventHandle, error) {
	h := simapi.EventHandle(s.handle())
	s.events[h] = true
	s.pendingCb = cb
	s.pendingCpu = cpu
	s.pendingData = data
	return h, nil
}

func (s *Sim) CancelEvent(h simapi.EventHandle) error {
	delete(s.events, h)
	return nil
}

// FireEvent lets a test trigger the most recently posted event, as the
// simulator's own clock would when virtual time elapses.
func (s *Sim) FireEvent(h simapi.EventHandle) {
	if !s.events[h] {
		return
	}
	delete(s.events, h)
	if s.pendingCb != nil {
		s.pendingCb(s.pendingCpu, s.pendingData)
	}
}

// FireLastEvent fires whichever event PostEvent most recently armed,
// without requiring the caller to have kept the handle around; this
// module only ever arms one clock event (the timeout) at a time.
func (s *Sim) FireLastEvent() {
	if s.pendingCb == nil {
		return
	}
	cb := s.pendingCb
	cpu, data := s.pendingCpu, s.pendingData
	s.pendingCb = nil
	cb(cpu, data)
}

func (s *Sim) SetBookmark(name string) error { s.bookmarks[name] = true; return nil }

func (s *Sim) ReverseToBookmark(name string) error {
	if !s.bookmarks[name] {
		return fmt.Errorf("fake: no such bookmark %q", name)
	}
	return nil
}

func (s *Sim) SetLogLevel(obj *simapi.ConfObject, level int) error { return nil }

func (s *Sim) ObjectIsProcessor(obj *simapi.ConfObject) bool { return true }

// FireMagic lets a test drive the magic-instruction HAP directly.
func (s *Sim) FireMagic(trigger *simapi.ConfObject, number int64) {
	if s.magicCb != nil {
		s.magicCb(trigger, number)
	}
}

// FireException lets a test drive the exception HAP directly.
func (s *Sim) FireException(cpu *simapi.ConfObject, exception int64) {
	if s.exceptionCb != nil {
		s.exceptionCb(cpu, exception)
	}
}

// FireBreakpoint lets a test drive the breakpoint-memop HAP directly.
func (s *Sim) FireBreakpoint(cpu *simapi.ConfObject, breakpoint int64) {
	if s.breakpointCb != nil {
		s.breakpointCb(cpu, breakpoint)
	}
}

// FireInstructionExecute lets a test drive the before-instruction HAP
// directly, as if the simulator were about to execute bytes at pc.
func (s *Sim) FireInstructionExecute(cpu *simapi.ConfObject, pc uint64, bytes []byte) {
	if s.instrCb != nil {
		s.instrCb(cpu, pc, bytes)
	}
}
