// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cover implements the AFL-compatible edge hit-count map: half of
// component B (spec.md §4.B). It is shared with the external fuzzer
// library as a raw mutable byte slice and is written only from the
// simulator thread's before/after-instruction hooks, per the "simulator
// thread writes only while the fuzzer thread is blocked on recv"
// discipline of spec.md §5.
package cover

// DefaultMapLength is the default power-of-two coverage map size M from
// spec.md §3.
const DefaultMapLength = 128 * 1024

// Mode selects the increment discipline for edge hits.
type Mode int

const (
	// ModeHitCount increments map[idx] with unsigned byte wraparound on
	// every hit, the classic AFL behavior.
	ModeHitCount Mode = iota
	// ModeOnce replaces the increment with a one-shot saturation: the
	// first hit to idx sets a nonzero value, subsequent hits to the same
	// idx in the same run are no-ops.
	ModeOnce
)

// Map is the dense, fixed-length byte array coverage map of spec.md §3,
// plus the prevLoc cursor the AFL edge hash needs.
//
// Map is not safe for concurrent use; callers must uphold spec.md §5's
// single-writer-on-the-simulator-thread discipline themselves.
type Map struct {
	bytes   []byte
	length  uint64
	mode    Mode
	prevLoc uint64
	once    map[uint64]bool
}

// New allocates a coverage map of the given length, which must be a power
// of two. Length 0 defaults to DefaultMapLength.
func New(length int, mode Mode) *Map {
	if length <= 0 {
		length = DefaultMapLength
	}
	return &Map{
		bytes:  make([]byte, length),
		length: uint64(length),
		mode:   mode,
		once:   make(map[uint64]bool),
	}
}

// Bytes returns the raw backing slice, to be exposed to the fuzzer
// library as an OwnedMutSlice<u8> named "map" per spec.md §6.
func (m *Map) Bytes() []byte { return m.bytes }

// Len returns the map's fixed length M.
func (m *Map) Len() int { return len(m.bytes) }

// ResetIterationState zeroes prevLoc (spec.md invariant 4: "coverage_prev_loc
// is reset to 0 on every iteration boundary"). It does NOT clear the hit
// counts themselves — those persist for the life of the campaign, as AFL
// intends. Only the edge-hash cursor resets, plus, in ModeOnce, the set of
// indices already hit in this iteration.
func (m *Map) ResetIterationState() {
	m.prevLoc = 0
	if m.mode == ModeOnce {
		m.once = make(map[uint64]bool)
	}
}

// edgeIndex computes idx = (pc XOR prev_loc) mod M per spec.md §4.B.
func (m *Map) edgeIndex(pc uint64) uint64 {
	return (pc ^ m.prevLoc) % m.length
}

// RecordEdge implements the per-executed-instruction hook of spec.md
// §4.B: "On each executed instruction whose classification is
// call|control_flow|ret, compute idx, increment map[idx]
// ..., then set prev_loc = (pc >> 1) mod M."
func (m *Map) RecordEdge(pc uint64) {
	idx := m.edgeIndex(pc)
	switch m.mode {
	case ModeOnce:
		if !m.once[idx] {
			m.once[idx] = true
			if m.bytes[idx] == 0 {
				m.bytes[idx] = 1
			}
		}
	default:
		m.bytes[idx]++ // unsigned byte wraparound is the zero value of Go's overflow behavior
	}
	m.prevLoc = (pc >> 1) % m.length
}

// IndexFor exposes the edge index computation for testing property 3 of
// spec.md §8 ("the coverage-map index computed for it is identical if the
// inter-iteration execution paths were identical") without mutating state.
func (m *Map) IndexFor(pc uint64) uint64 { return m.edgeIndex(pc) }

// PrevLoc returns the current edge-hash cursor, exposed for tests that
// assert invariant 1 of spec.md §8.
func (m *Map) PrevLoc() uint64 { return m.prevLoc }
