// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package trace

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRespectsPCOnly(t *testing.T) {
	tr := New(true)
	tr.Append(0x1000, "mov", []byte{0x0f, 0x1e})
	require.Equal(t, 1, tr.Len())
	assert.Equal(t, "", tr.Entries()[0].Mnemonic)
	assert.Nil(t, tr.Entries()[0].Bytes)
}

func TestClearEmptiesEntries(t *testing.T) {
	tr := New(false)
	tr.Append(0x1000, "nop", nil)
	tr.Clear()
	assert.Equal(t, 0, tr.Len())
}

func TestWriteToThenLoadRoundTripsFullEntries(t *testing.T) {
	tr := New(false)
	tr.Append(0x401000, "mov eax, ebx", []byte{0x89, 0xd8})
	tr.Append(0x401002, "ret", []byte{0xc3})

	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, tr.WriteTo(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.False(t, loaded.PCOnly)
	if diff := cmp.Diff(tr.Entries(), loaded.Entries()); diff != "" {
		t.Errorf("round-tripped entries differ (-want +got):\n%s", diff)
	}
}

func TestWriteToThenLoadRoundTripsPCOnlyEntries(t *testing.T) {
	tr := New(true)
	tr.Append(0x2000, "ignored-mnemonic", []byte{0xff})

	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, tr.WriteTo(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())
	assert.True(t, loaded.PCOnly)
	assert.Equal(t, uint64(0x2000), loaded.Entries()[0].PC)
}

func TestShouldPersistMatrix(t *testing.T) {
	assert.False(t, ShouldPersist(SaveNone, true, true))
	assert.True(t, ShouldPersist(SaveAll, false, false))
	assert.True(t, ShouldPersist(SaveInteresting, false, true))
	assert.True(t, ShouldPersist(SaveInteresting, true, false))
	assert.False(t, ShouldPersist(SaveInteresting, false, false))
	assert.True(t, ShouldPersist(SaveSolutions, true, false))
	assert.False(t, ShouldPersist(SaveSolutions, false, true))
}

func TestParseSaveMode(t *testing.T) {
	cases := map[string]SaveMode{
		"":            SaveNone,
		"none":        SaveNone,
		"all":         SaveAll,
		"interesting": SaveInteresting,
		"solutions":   SaveSolutions,
	}
	for s, want := range cases {
		got, err := ParseSaveMode(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got)
	}

	_, err := ParseSaveMode("bogus")
	assert.Error(t, err)
}
