// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cmplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsDimensions(t *testing.T) {
	m := New(0, 0)
	assert.Equal(t, DefaultHeaders, m.Headers())
	assert.Equal(t, DefaultSlots, m.Slots())
}

func TestShapeForWidthMatchesAFLppEncoding(t *testing.T) {
	assert.Equal(t, uint8(0), ShapeForWidth(8))
	assert.Equal(t, uint8(1), ShapeForWidth(16))
	assert.Equal(t, uint8(2), ShapeForWidth(32))
	assert.Equal(t, uint8(3), ShapeForWidth(64))
}

func TestRecordUpdatesHeaderAndRingBuffer(t *testing.T) {
	m := New(64, 4)
	pc := uint64(0x4010)
	idx := HashIndex(pc, 64)

	m.Record(pc, 32, 1, 2, AttrEqual)
	m.Record(pc, 32, 3, 4, AttrEqual)

	hdr := m.HeaderAt(idx)
	require.EqualValues(t, 2, hdr.Hits)
	assert.Equal(t, uint8(2), hdr.Shape)
	assert.Equal(t, Operand{A: 1, B: 2}, m.OperandAt(idx, 0))
	assert.Equal(t, Operand{A: 3, B: 4}, m.OperandAt(idx, 1))
}

func TestRecordWrapsRingBufferAtK(t *testing.T) {
	m := New(8, 2)
	pc := uint64(0x100)
	idx := HashIndex(pc, 8)

	m.Record(pc, 8, 10, 11, AttrEqual)
	m.Record(pc, 8, 20, 21, AttrEqual)
	m.Record(pc, 8, 30, 31, AttrEqual)

	assert.Equal(t, Operand{A: 30, B: 31}, m.OperandAt(idx, 0))
	assert.Equal(t, Operand{A: 20, B: 21}, m.OperandAt(idx, 1))
}

func TestAttributeFromClassificationFallsBackToEqual(t *testing.T) {
	assert.Equal(t, AttrEqual, AttributeFromClassification(false, false, false))
	assert.Equal(t, AttrGreater, AttributeFromClassification(false, true, false))
	assert.Equal(t, AttrEqual|AttrLesser, AttributeFromClassification(true, false, true))
}

func TestHashIndexWithinBounds(t *testing.T) {
	for _, h := range []int{1, 2, 7, 64, 65536} {
		for _, pc := range []uint64{0, 1, 0xdeadbeef, ^uint64(0)} {
			idx := HashIndex(pc, h)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, h)
		}
	}
}
