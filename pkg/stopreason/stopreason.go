// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stopreason defines the StopReason discriminated union of
// spec.md §3 and the magic-rendezvous kinds of spec.md §6. Go has no
// native sum type, so this is modeled as a Kind tag plus the fields
// relevant to that kind, following the same shape syzkaller uses for its
// own small tagged unions (e.g. ipc.CallInfo's Flags-gated fields).
package stopreason

import "github.com/sim-fuzz/simcore/pkg/simapi"

// MagicKind enumerates the guest ABI rendezvous kinds of spec.md §6.
type MagicKind int

const (
	StartBufPtrSizePtr MagicKind = iota
	StartBufPtrSizeVal
	StartBufPtrSizePtrVal
	StopNormal
	StopAssert
)

func (k MagicKind) String() string {
	switch k {
	case StartBufPtrSizePtr:
		return "StartBufPtrSizePtr"
	case StartBufPtrSizeVal:
		return "StartBufPtrSizeVal"
	case StartBufPtrSizePtrVal:
		return "StartBufPtrSizePtrVal"
	case StopNormal:
		return "StopNormal"
	case StopAssert:
		return "StopAssert"
	default:
		return "UnknownMagicKind"
	}
}

// IsStart reports whether the magic kind is one of the three start
// variants (all of which carry a testcase buffer pointer).
func (k MagicKind) IsStart() bool {
	return k == StartBufPtrSizePtr || k == StartBufPtrSizeVal || k == StartBufPtrSizePtrVal
}

// SolutionKind enumerates why a testcase was classified as a solution.
type SolutionKind int

const (
	SolutionTimeout SolutionKind = iota
	SolutionException
	SolutionBreakpoint
	SolutionManual
)

func (k SolutionKind) String() string {
	switch k {
	case SolutionTimeout:
		return "Timeout"
	case SolutionException:
		return "Exception"
	case SolutionBreakpoint:
		return "Breakpoint"
	case SolutionManual:
		return "Manual"
	default:
		return "UnknownSolutionKind"
	}
}

// Kind tags which variant of StopReason is populated.
type Kind int

const (
	KindNone Kind = iota
	KindMagic
	KindManualStart
	KindManualStartNoBuffer
	KindManualStop
	KindSolution
)

// ManualStartInfo carries the processor-supplied buffer/size addresses
// for a script-triggered start (harness.start / start_with_maximum_size).
type ManualStartInfo struct {
	BufferAddress uint64
	SizeAddress   uint64
	MaximumSize   uint64
	Virtual       bool
	HasSizeAddr   bool
}

// StopReason is the single normalized event the Stop Classifier (component
// C) hands to the Fuzzing Driver (component E). Exactly one StopReason may
// be pending at a time (spec.md invariant 2); Take clears it.
type StopReason struct {
	Kind      Kind
	Processor *simapi.ConfObject

	// KindMagic
	MagicNumber MagicKind

	// KindManualStart
	ManualStart ManualStartInfo

	// KindSolution
	Solution SolutionKind
	Message  string
}

// None reports whether the reason is unset.
func (r *StopReason) None() bool { return r == nil || r.Kind == KindNone }

// Box holds a single pending StopReason with take-and-clear semantics,
// enforcing invariant 2 of spec.md §3: setting a second reason before the
// first is consumed is a programming error, not silently overwritten.
//
// Box is not safe for concurrent use by design: spec.md §5 guarantees all
// HAP callbacks and driver transitions run single-threaded on the
// simulator thread, so no locking belongs on this hot path.
type Box struct {
	reason *StopReason
}

// Set stores reason as pending. Panics if a reason is already pending,
// surfacing the InternalInvariantViolation the spec calls for rather than
// silently dropping one of the two events.
func (b *Box) Set(reason *StopReason) {
	if b.reason != nil {
		panic("stopreason: StopReason set twice before being consumed")
	}
	b.reason = reason
}

// TrySet stores reason as pending, returning false instead of panicking
// if one is already pending. Used by HAP callbacks that must not crash
// the simulator thread on a racy double-fire; they log and drop instead.
func (b *Box) TrySet(reason *StopReason) bool {
	if b.reason != nil {
		return false
	}
	b.reason = reason
	return true
}

// Take returns the pending reason and clears it, or nil if none is
// pending.
func (b *Box) Take() *StopReason {
	r := b.reason
	b.reason = nil
	return r
}

// Pending reports whether a reason is currently set, without consuming it.
func (b *Box) Pending() bool { return b.reason != nil }
