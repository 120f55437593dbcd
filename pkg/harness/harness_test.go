// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-fuzz/simcore/pkg/arch"
	"github.com/sim-fuzz/simcore/pkg/driver"
	"github.com/sim-fuzz/simcore/pkg/fuzzlib"
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
	"github.com/sim-fuzz/simcore/pkg/simapi/fake"
)

func newTestHarness() (*Harness, *fake.Sim, *simapi.ConfObject) {
	sim := fake.New("x86-64", 64)
	sim.VirtualIsIdentity = true
	cpu := simapi.NewConfObject(1, "cpu")
	a := arch.NewX86_64()
	sim.Registers[a.TestcaseAreaRegister()] = 0x4000
	sim.Registers[a.TestcaseSizeRegister()] = 0x8000
	sim.Memory[0x8000] = 64
	return New(sim), sim, cpu
}

func TestSettersMutateUntilStart(t *testing.T) {
	h, _, _ := newTestHarness()
	require.NoError(t, h.SetTimeout(2.5))
	require.NoError(t, h.SetMagicStart(7))
	require.NoError(t, h.AddMagicStop(8))
	require.NoError(t, h.SetArchitectureHint(arch.HintX86_64))
}

func TestSettersRejectedAfterStart(t *testing.T) {
	h, _, cpu := newTestHarness()
	channels := fuzzlib.NewChannels(1)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}

	_, err := h.StartWithoutBuffer(cpu, channels)
	require.NoError(t, err)

	err = h.SetTimeout(1.0)
	require.Error(t, err)
	assert.True(t, serr.Is(err, serr.ConfigError))

	err = h.SetMagicStart(3)
	require.Error(t, err)
}

func TestStartBuildsAndInitializesDriver(t *testing.T) {
	h, _, cpu := newTestHarness()
	channels := fuzzlib.NewChannels(1)
	require.NoError(t, h.SetStartOnHarness(true))

	drv, err := h.Start(cpu, channels)
	require.NoError(t, err)
	assert.Equal(t, driver.StateArmedFirst, drv.State())
}

func TestStartTwiceErrors(t *testing.T) {
	h, _, cpu := newTestHarness()
	channels := fuzzlib.NewChannels(1)

	_, err := h.Start(cpu, channels)
	require.NoError(t, err)

	_, err = h.Start(cpu, channels)
	assert.Error(t, err)
}

func TestStartWithoutBufferFinishesWhenNoTestcaseIsAvailable(t *testing.T) {
	h, _, cpu := newTestHarness()
	channels := fuzzlib.NewChannels(1)
	close(channels.Testcases) // nextTestcase immediately reports false, driver finishes

	drv, err := h.StartWithoutBuffer(cpu, channels)
	require.NoError(t, err)
	assert.Equal(t, driver.StateDone, drv.State())
}

func TestStartWithBufferWritesTestcaseAtFixedAddresses(t *testing.T) {
	h, sim, cpu := newTestHarness()
	sim.Memory[0xa000] = 64 // little-endian cap cell at the size address
	channels := fuzzlib.NewChannels(1)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("hello")}

	drv, err := h.StartWithBuffer(cpu, channels, 0x9000, 0xa000, false)
	require.NoError(t, err)

	assert.Equal(t, driver.StateRunning, drv.State())
	for i, want := range []byte("hello") {
		assert.Equal(t, want, sim.Memory[0x9000+uint64(i)])
	}
}

func TestStartWithMaximumSizeTruncatesAtCap(t *testing.T) {
	h, sim, cpu := newTestHarness()
	channels := fuzzlib.NewChannels(1)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("a long testcase")}

	drv, err := h.StartWithMaximumSize(cpu, channels, 0x9000, 4, false)
	require.NoError(t, err)

	assert.Equal(t, driver.StateRunning, drv.State())
	for i, want := range []byte("a l") {
		assert.Equal(t, want, sim.Memory[0x9000+uint64(i)])
	}
	_, present := sim.Memory[0x9000+4]
	assert.False(t, present, "bytes beyond the configured cap must not be written")
}

func TestStopClosesSharedShutdownChannel(t *testing.T) {
	h, _, cpu := newTestHarness()
	channels := fuzzlib.NewChannels(1)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	_, err := h.StartWithoutBuffer(cpu, channels)
	require.NoError(t, err)

	h.Stop()
	select {
	case <-channels.Shutdown:
	default:
		t.Fatal("expected Stop to close the shutdown channel")
	}
}

func TestSolutionBeforeStartErrors(t *testing.T) {
	h, _, cpu := newTestHarness()
	err := h.Solution(cpu, "too early")
	assert.Error(t, err)
}

func TestSolutionAfterStartInjectsIntoDriver(t *testing.T) {
	h, _, cpu := newTestHarness()
	channels := fuzzlib.NewChannels(1)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	_, err := h.StartWithoutBuffer(cpu, channels)
	require.NoError(t, err)

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("y")}
	require.NoError(t, h.Solution(cpu, "guest reported a failure"))

	k := <-channels.ExitKinds
	assert.Equal(t, fuzzlib.ExitCrash, k)
}
