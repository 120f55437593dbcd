// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package simapi describes the boundary between simcore and the host
// simulator. The simulator is an external collaborator (spec.md §1,
// "Out of scope"): simcore never links against its C ABI directly, it
// only depends on this package's interfaces. A real plugin build backs
// these interfaces with cgo calls into the simulator's object model; test
// and replay builds back them with an in-memory fake.
//
// Every pointer the simulator hands simcore is a borrowed, opaque handle:
// simcore never owns simulator object lifetime. This is the "single
// borrow helper keyed on an instance pointer field" pattern called for by
// spec.md §9's design notes, expressed here as the ConfObject type plus
// the Simulator interface rather than as raw *C.conf_object_t conversions.
package simapi

import "context"

// ConfObject is an opaque handle to a simulator object (a processor, the
// plugin's own instance, or some other configuration object). It carries
// no exported fields; code outside this package treats it as an identity
// token to pass back into Simulator methods.
type ConfObject struct {
	id   uint64
	kind string
}

// NewConfObject constructs a handle; only simulator-facing adapters call
// this; test fakes use it to mint processor handles.
func NewConfObject(id uint64, kind string) *ConfObject { return &ConfObject{id: id, kind: kind} }

func (c *ConfObject) ID() uint64    { return c.id }
func (c *ConfObject) Kind() string  { return c.kind }
func (c *ConfObject) String() string { return c.kind }

// Access mirrors the simulator's read/write/execute access enum, used by
// virtual-to-physical translation.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessExecute
)

// PhysicalAddress is the result of a logical-to-physical translation.
type PhysicalAddress struct {
	Address uint64
	Valid   bool
}

// MicroCheckpointFlags mirrors the simulator's Sim_MC_* flag bits used by
// the micro-checkpoint snapshot back-end.
type MicroCheckpointFlags int

const (
	MicroCheckpointUser MicroCheckpointFlags = 1 << iota
	MicroCheckpointPersistent
)

// MicroCheckpointInfo describes one entry of the simulator's persisted
// checkpoint list, as returned by ListMicroCheckpoints.
type MicroCheckpointInfo struct {
	Name  string
	Index int
}

// HapHandle identifies a registered callback so it can later be removed.
type HapHandle uint64

// MagicCallback is invoked synchronously on the simulator thread when a
// magic (rendezvous) instruction executes. trigger is the object that
// triggered it (typically a processor); number is the raw magic number
// carried by the instruction.
type MagicCallback func(trigger *ConfObject, number int64)

// ExceptionCallback is invoked on the simulator thread when a guest
// exception is raised.
type ExceptionCallback func(cpu *ConfObject, exception int64)

// BreakpointCallback is invoked on the simulator thread when a configured
// memory breakpoint fires.
type BreakpointCallback func(cpu *ConfObject, breakpoint int64)

// StoppedCallback is invoked on the simulator thread whenever the
// simulation stops, for any reason (HAP, manual pause, breakpoint).
type StoppedCallback func()

// EventCallback is invoked when a scheduled clock event (the timeout
// event) fires.
type EventCallback func(cpu *ConfObject, data interface{})

// InstructionExecuteCallback is invoked on the simulator thread before each
// instruction executes. bytes holds the raw undecoded instruction bytes at
// pc, already fetched by the simulator's own instruction query so callers
// never need a separate guest-memory read to disassemble it.
type InstructionExecuteCallback func(cpu *ConfObject, pc uint64, bytes []byte)

// Simulator is the full set of simulator operations simcore depends on.
// Every call that can fail in the underlying C API returns an error here
// instead of setting a thread-local exception flag: this is the
// "centralized take-and-clear pending exception" helper from spec.md §9,
// pushed to the interface boundary so callers never see the raw ABI.
type Simulator interface {
	// Registers & memory.
	ReadRegisterByName(cpu *ConfObject, name string) (uint64, error)
	WriteGuestByte(cpu *ConfObject, physicalAddress uint64, b byte) error
	ReadGuestByte(cpu *ConfObject, physicalAddress uint64) (byte, error)
	TranslateVirtualToPhysical(cpu *ConfObject, logicalAddress uint64, access Access) (PhysicalAddress, error)
	ReportedArchitecture(cpu *ConfObject) (string, error)
	LogicalAddressWidthBits(cpu *ConfObject) (int, error)

	// Control flow.
	ContinueSimulation() error
	RequestBreak() error
	Quit(code int) error

	// HAP subscription.
	SubscribeMagicInstruction(cb MagicCallback) (HapHandle, error)
	UnsubscribeMagicInstruction(h HapHandle) error
	SubscribeException(cb ExceptionCallback) (HapHandle, error)
	UnsubscribeException(h HapHandle) error
	SubscribeBreakpointMemop(cb BreakpointCallback) (HapHandle, error)
	UnsubscribeBreakpointMemop(h HapHandle) error
	SubscribeSimulationStopped(cb StoppedCallback) (HapHandle, error)
	UnsubscribeSimulationStopped(h HapHandle) error
	SubscribeInstructionExecute(cb InstructionExecuteCallback) (HapHandle, error)
	UnsubscribeInstructionExecute(h HapHandle) error

	// Snapshots.
	SaveSnapshot(name string) error
	RestoreSnapshot(name string) error
	SaveMicroCheckpoint(name string, flags MicroCheckpointFlags) error
	RestoreMicroCheckpoint(index int) error
	DiscardFuture() error
	ListMicroCheckpoints() ([]MicroCheckpointInfo, error)

	// Timers, in virtual time seconds relative to cpu's own clock.
	PostEvent(cpu *ConfObject, seconds float64, data interface{}, cb EventCallback) (EventHandle, error)
	CancelEvent(h EventHandle) error

	// Reverse execution (used only by repro mode, scenario S6).
	SetBookmark(name string) error
	ReverseToBookmark(name string) error

	// Logging level, forwarded from pkg/log's verbosity so simulator-side
	// "info" messages from the plugin obey the same setting.
	SetLogLevel(obj *ConfObject, level int) error

	ObjectIsProcessor(obj *ConfObject) bool
}

// EventHandle identifies one posted clock event.
type EventHandle uint64

// WithTimeout is a convenience context helper for operations bounded by a
// campaign's configured timeout; simapi implementations may ignore ctx
// cancellation for genuinely synchronous simulator calls.
type WithTimeout = context.Context
