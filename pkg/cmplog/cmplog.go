// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cmplog implements the AFL++-compatible comparison-operand log:
// the other half of component B (spec.md §4.B, §6). It follows the shape
// of AFLppCmpLogMap, H headers plus H*K operand slots, held as Go slices;
// it does not expose a single contiguous buffer in AFL++'s binary layout.
package cmplog

// DefaultHeaders (H) and DefaultSlots (K) are the usual AFL++ cmplog
// dimensions: 65536 sites, 32 operand pairs retained per site.
const (
	DefaultHeaders = 1 << 16
	DefaultSlots   = 32
)

// CmpType mirrors AFL++'s header "type" field; simcore only ever produces
// instruction-derived comparisons.
type CmpType int

const CmpTypeInstruction CmpType = 0

// Attribute mirrors AFL++'s header "attribute" bitfield, also defined in
// pkg/arch as CmpAttribute; the two are kept distinct because cmplog's
// layout is a wire format while arch's is a decode-time classification.
type Attribute int

const (
	AttrEqual   Attribute = 1 << 0
	AttrGreater Attribute = 1 << 1
	AttrLesser  Attribute = 1 << 2
)

// Header is one AFLppCmpLogMap header entry.
type Header struct {
	Hits      uint32
	Shape     uint8 // log2(width)-3: 0,1,2,3 for widths 8,16,32,64
	Type      CmpType
	Attribute Attribute
}

// Operand is one stored comparison operand pair.
type Operand struct {
	A, B uint64
}

// Map is the AFL++ AFLppCmpLogMap-compatible structure of spec.md §3/§6:
// H headers and H*K operand slots, index = hash(pc) mod H.
//
// Map is not safe for concurrent use; see pkg/cover's equivalent note —
// the same single-writer-on-the-simulator-thread discipline applies.
type Map struct {
	headers  []Header
	operands [][]Operand
	h        int
	k        int
}

// New allocates a cmplog map with h headers and k operand slots per
// header. Zero values default to DefaultHeaders/DefaultSlots.
func New(h, k int) *Map {
	if h <= 0 {
		h = DefaultHeaders
	}
	if k <= 0 {
		k = DefaultSlots
	}
	operands := make([][]Operand, h)
	for i := range operands {
		operands[i] = make([]Operand, k)
	}
	return &Map{
		headers:  make([]Header, h),
		operands: operands,
		h:        h,
		k:        k,
	}
}

func (m *Map) Headers() int { return m.h }
func (m *Map) Slots() int   { return m.k }

// chunkWidthFor returns the minimum byte width that covers values up to
// h-1, per spec.md §4.B's "chunk size chosen as the minimum byte width
// that covers H-1".
func chunkWidthFor(h int) int {
	maxVal := uint64(h - 1)
	width := 1
	for maxVal >= (uint64(1) << (8 * width)) {
		width++
	}
	return width
}

// HashIndex implements hash_idx(pc, H): a fold-xor over 8-byte chunks of
// pc, with the chunk size chosen as the minimum byte width covering H-1,
// per spec.md §4.B.
func HashIndex(pc uint64, h int) int {
	if h <= 1 {
		return 0
	}
	width := chunkWidthFor(h)
	mask := uint64(1)<<(8*width) - 1
	if width >= 8 {
		mask = ^uint64(0)
	}
	var folded uint64
	remaining := pc
	for i := 0; i < 8; i += width {
		folded ^= remaining & mask
		remaining >>= uint(8 * width)
		if width >= 8 {
			break
		}
	}
	return int(folded % uint64(h))
}

// ShapeForWidth maps an operand bit width (8,16,32,64) to AFL++'s shape
// encoding log2(w)-3, i.e. {0,1,2,3}; see spec.md §9 Open Question 3 and
// its decision in DESIGN.md.
func ShapeForWidth(widthBits int) uint8 {
	switch widthBits {
	case 8:
		return 0
	case 16:
		return 1
	case 32:
		return 2
	case 64:
		return 3
	default:
		return 0
	}
}

// Record implements the "about-to-execute cmp instruction" hook of
// spec.md §4.B: updates the header at hash_idx(pc,H) and stores (a,b) in
// the ring at operands[idx][hits mod K].
//
// attribute should be the OR of Attribute bits the adapter classified
// (Equal/Greater/Lesser); pass AttrEqual if the adapter did not classify,
// per spec.md §4.B's documented fallback.
func (m *Map) Record(pc uint64, widthBits int, a, b uint64, attribute Attribute) {
	idx := HashIndex(pc, m.h)
	hdr := &m.headers[idx]
	hdr.Hits++
	hdr.Shape = ShapeForWidth(widthBits)
	hdr.Type = CmpTypeInstruction
	hdr.Attribute = attribute
	slot := int((hdr.Hits - 1) % uint32(m.k))
	m.operands[idx][slot] = Operand{A: a, B: b}
}

// OperandAt returns the operand pair stored at index idx, slot, for
// testing invariant 4 of spec.md §8.
func (m *Map) OperandAt(idx, slot int) Operand { return m.operands[idx][slot] }

// HeaderAt returns the header at idx.
func (m *Map) HeaderAt(idx int) Header { return m.headers[idx] }

// AttributeFromClassification translates a set of boolean comparison
// relations into the OR'd Attribute bitfield, falling back to AttrEqual
// when none apply (spec.md §4.B).
func AttributeFromClassification(equal, greater, lesser bool) Attribute {
	var attr Attribute
	if equal {
		attr |= AttrEqual
	}
	if greater {
		attr |= AttrGreater
	}
	if lesser {
		attr |= AttrLesser
	}
	if attr == 0 {
		attr = AttrEqual
	}
	return attr
}
