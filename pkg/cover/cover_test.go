// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEdgeComputesAFLIndex(t *testing.T) {
	m := New(1024, ModeHitCount)
	m.RecordEdge(0x42)
	idx := (uint64(0x42) ^ 0) % 1024
	require.Equal(t, byte(1), m.Bytes()[idx])
	assert.Equal(t, (uint64(0x42)>>1)%1024, m.PrevLoc())
}

func TestRecordEdgeHitCountWrapsAndAccumulates(t *testing.T) {
	m := New(16, ModeHitCount)
	for i := 0; i < 300; i++ {
		m.RecordEdge(5)
		m.ResetIterationState()
	}
	idx := m.IndexFor(5)
	assert.Equal(t, byte(300%256), m.Bytes()[idx])
}

func TestResetIterationStateZeroesPrevLocNotBytes(t *testing.T) {
	m := New(64, ModeHitCount)
	m.RecordEdge(7)
	require.NotZero(t, m.PrevLoc())
	before := append([]byte(nil), m.Bytes()...)
	m.ResetIterationState()
	assert.Zero(t, m.PrevLoc())
	assert.Equal(t, before, m.Bytes())
}

func TestModeOnceSaturatesWithinAnIteration(t *testing.T) {
	m := New(64, ModeOnce)
	// pc 0 always hashes to idx 0 and leaves prev_loc at 0, so repeated
	// calls hit the same idx without an intervening reset.
	m.RecordEdge(0)
	m.RecordEdge(0)
	m.RecordEdge(0)
	assert.Equal(t, byte(1), m.Bytes()[0])

	m.ResetIterationState()
	m.RecordEdge(0)
	assert.Equal(t, byte(1), m.Bytes()[0])
}

func TestIdenticalPathsProduceIdenticalIndices(t *testing.T) {
	path := []uint64{0x1000, 0x1010, 0x1040, 0x2000}

	m1 := New(DefaultMapLength, ModeHitCount)
	var indices1 []uint64
	for _, pc := range path {
		indices1 = append(indices1, m1.IndexFor(pc))
		m1.RecordEdge(pc)
	}
	m1.ResetIterationState()

	m2 := New(DefaultMapLength, ModeHitCount)
	var indices2 []uint64
	for _, pc := range path {
		indices2 = append(indices2, m2.IndexFor(pc))
		m2.RecordEdge(pc)
	}

	assert.Equal(t, indices1, indices2)
}
