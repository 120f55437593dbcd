// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-fuzz/simcore/pkg/arch"
	"github.com/sim-fuzz/simcore/pkg/cmplog"
	"github.com/sim-fuzz/simcore/pkg/config"
	"github.com/sim-fuzz/simcore/pkg/fuzzlib"
	"github.com/sim-fuzz/simcore/pkg/simapi"
	"github.com/sim-fuzz/simcore/pkg/simapi/fake"
	"github.com/sim-fuzz/simcore/pkg/stopreason"
	"github.com/sim-fuzz/simcore/pkg/trace"
)

// newTestDriver wires up a Driver against a fake x86-64 simulator with a
// magic-instruction start/stop convention armed, the same registers
// GetMagicStartBuffer/GetMagicStartSize read.
func newTestDriver(t *testing.T, configure func(*config.Configuration)) (*Driver, *fake.Sim, *fuzzlib.Channels, *simapi.ConfObject) {
	t.Helper()
	sim := fake.New("x86-64", 64)
	sim.VirtualIsIdentity = true
	cpu := simapi.NewConfObject(1, "cpu")

	a := arch.NewX86_64()
	sim.Registers[a.TestcaseAreaRegister()] = 0x4000
	sim.Registers[a.TestcaseSizeRegister()] = 0x8000
	sim.Memory[0x8000] = 64 // little-endian cap == 64, fits every test input

	cfg := config.Default()
	cfg.StartOnHarness = true
	cfg.StopOnHarness = true
	if configure != nil {
		configure(&cfg)
	}

	channels := fuzzlib.NewChannels(1)
	d := New(sim, &cfg, channels)
	require.NoError(t, d.Initialize(cpu))
	return d, sim, channels, cpu
}

func TestInitializeArmsFirstState(t *testing.T) {
	d, _, _, _ := newTestDriver(t, nil)
	assert.Equal(t, StateArmedFirst, d.State())
	assert.NotNil(t, d.CoverageMap())
}

func TestFirstMagicStartWritesTestcaseAndArmsIteration(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, nil)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("hello")}

	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))

	assert.Equal(t, StateRunning, d.State())
	assert.EqualValues(t, 1, d.Iteration())
	for i, want := range []byte("hello") {
		assert.Equal(t, want, sim.Memory[0x4000+uint64(i)])
	}
}

func TestUnconfiguredBreakpointProducesNoStop(t *testing.T) {
	d, sim, _, cpu := newTestDriver(t, nil)

	sim.FireBreakpoint(cpu, 999) // not in ConfiguredBreakpoints, classifier drops it silently
	assert.Equal(t, StateArmedFirst, d.State())
}

func TestPreStartManualStopIsIgnoredWithoutTouchingSnapshot(t *testing.T) {
	d, sim, _, _ := newTestDriver(t, nil)

	require.NoError(t, sim.RequestBreak()) // unclassified stop before any start rendezvous
	assert.Equal(t, StateArmedFirst, d.State())
}

func TestManualStartWithoutBufferConsumesOneTestcaseButWritesNothing(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, nil)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("ignored")}

	require.NoError(t, d.ForceManualStartNoBuffer(cpu))

	assert.Equal(t, StateRunning, d.State())
	assert.False(t, d.haveStartBuffer)
	assert.EqualValues(t, 1, d.Iteration())
	select {
	case <-channels.Testcases:
		t.Fatal("testcase channel should have been drained by the no-buffer start")
	default:
	}
	_ = sim
}

func TestTriggerManualStartRejectsWrongState(t *testing.T) {
	d, _, _, cpu := newTestDriver(t, nil)
	d.state = StateRunning
	err := d.TriggerManualStart(&stopreason.StopReason{Kind: stopreason.KindManualStartNoBuffer, Processor: cpu})
	assert.Error(t, err)
}

func TestIterationStopSendsExitKindAndAdvancesToNextTestcase(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, nil)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("first")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("second")}
	sim.Registers["rax"] = 2 // default MagicStopIndices entry
	sim.FireMagic(cpu, int64(stopreason.StopNormal))

	select {
	case k := <-channels.ExitKinds:
		assert.Equal(t, fuzzlib.ExitOk, k)
	default:
		t.Fatal("expected an exit kind to have been sent")
	}
	assert.EqualValues(t, 2, d.Iteration())
	for i, want := range []byte("second") {
		assert.Equal(t, want, sim.Memory[0x4000+uint64(i)])
	}
}

func TestSolutionStopClassifiesAsCrash(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, func(cfg *config.Configuration) {
		cfg.AllExceptionsAreSolutions = true
	})
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("y")}
	sim.FireException(cpu, 6)

	k := <-channels.ExitKinds
	assert.Equal(t, fuzzlib.ExitCrash, k)
}

func TestTimeoutStopClassifiesAsTimeout(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, func(cfg *config.Configuration) {
		cfg.TimeoutSeconds = 1.0
	})
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())
	require.True(t, d.classifier.TimeoutArmed())

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("y")}
	sim.FireLastEvent()

	k := <-channels.ExitKinds
	assert.Equal(t, fuzzlib.ExitTimeout, k)
}

func TestIterationLimitQuitsWhenConfigured(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, func(cfg *config.Configuration) {
		cfg.IterationLimit = 1
		cfg.QuitOnIterationLimit = true
	})
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("y")}
	sim.Registers["rax"] = 2
	sim.FireMagic(cpu, int64(stopreason.StopNormal))

	<-channels.ExitKinds
	assert.Equal(t, StateDone, d.State())
	select {
	case <-channels.Shutdown:
	default:
		t.Fatal("expected shutdown to be closed once the iteration limit quit")
	}
}

func TestNextTestcaseFalseFinishesCampaign(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, nil)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())

	close(channels.Testcases)
	sim.Registers["rax"] = 2
	sim.FireMagic(cpu, int64(stopreason.StopNormal))

	assert.Equal(t, StateDone, d.State())
}

func TestReproModePausesInsteadOfContinuing(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, nil)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())

	d.SetReproTestcase([]byte("repro"))
	sim.Registers["rax"] = 2
	sim.FireMagic(cpu, int64(stopreason.StopNormal))

	assert.True(t, d.StoppedForRepro())
	assert.True(t, d.paused)
	select {
	case <-channels.ExitKinds:
		t.Fatal("repro mode must not report an exit kind")
	default:
	}

	d.Resume()
	assert.False(t, d.StoppedForRepro())
	assert.False(t, d.paused)
}

func TestInjectSolutionRequestsBreakAndReportsCrash(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, nil)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("y")}
	require.NoError(t, d.InjectSolution(cpu, stopreason.SolutionManual, "guest asserted"))

	k := <-channels.ExitKinds
	assert.Equal(t, fuzzlib.ExitCrash, k)
}

func TestRefiredStartWhileRunningDoesNotTouchSnapshotOrChannels(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, nil)
	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("first")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())
	require.EqualValues(t, 1, d.Iteration())

	// The guest re-enters the start rendezvous mid-run, without having
	// stopped for any other reason first.
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))

	assert.Equal(t, StateRunning, d.State())
	assert.EqualValues(t, 1, d.Iteration(), "a re-fired start must not consume a new iteration")
	select {
	case <-channels.ExitKinds:
		t.Fatal("a re-fired start must not report an exit kind")
	default:
	}
	select {
	case <-channels.Testcases:
		t.Fatal("a re-fired start must not pull a new testcase")
	default:
	}
}

func TestCountersAndThroughputAfterTimeoutAndIterationLimit(t *testing.T) {
	d, sim, channels, cpu := newTestDriver(t, func(cfg *config.Configuration) {
		cfg.TimeoutSeconds = 1.0
		cfg.IterationLimit = 2
	})
	assert.Zero(t, d.Solutions())
	assert.Zero(t, d.Timeouts())

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())
	assert.GreaterOrEqual(t, d.ElapsedSeconds(), 0.0)

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("y")}
	sim.FireLastEvent() // timeout fires, classified as a solution; also reaches IterationLimit

	<-channels.ExitKinds
	assert.EqualValues(t, 1, d.Solutions())
	assert.EqualValues(t, 1, d.Timeouts())
	assert.EqualValues(t, 2, d.Iteration())
	assert.Equal(t, StateRunning, d.State(), "QuitOnIterationLimit is unset, so hitting the limit only logs")
	assert.GreaterOrEqual(t, d.ExecPerSec(), 0.0)
}

type fakeDisassembler struct {
	classification arch.Classification
}

func (f fakeDisassembler) DisassembleOne(bytes []byte, pc uint64) (arch.Classification, error) {
	return f.classification, nil
}

func TestInstructionExecuteFeedsCoverageCmplogAndTrace(t *testing.T) {
	cmp := arch.Classification{
		IsControlFlow: true,
		IsCmp:         true,
		Mnemonic:      "cmp",
		CmpLeft:       &arch.Expr{Kind: arch.ExprImm, Imm: 5, Width: 32},
		CmpRight:      &arch.Expr{Kind: arch.ExprImm, Imm: 7, Width: 32},
		CmpAttribute:  arch.CmpEqual,
	}
	adapter := arch.WithDisassembler(arch.NewX86_64(), fakeDisassembler{classification: cmp})

	sim := fake.New("x86-64", 64)
	sim.VirtualIsIdentity = true
	cpu := simapi.NewConfObject(1, "cpu")
	sim.Registers[adapter.TestcaseAreaRegister()] = 0x4000
	sim.Registers[adapter.TestcaseSizeRegister()] = 0x8000
	sim.Memory[0x8000] = 64

	cfg := config.Default()
	cfg.StartOnHarness = true
	cfg.StopOnHarness = true
	cfg.CmplogEnabled = true
	saveAll, err := trace.ParseSaveMode("all")
	require.NoError(t, err)
	cfg.ExecutionTraceSave = saveAll

	channels := fuzzlib.NewChannels(1)
	d := New(sim, &cfg, channels)
	require.NoError(t, d.Initialize(cpu))
	d.adapter = adapter
	d.classifier.SetAdapter(adapter)

	channels.Testcases <- fuzzlib.Testcase{Bytes: []byte("x")}
	sim.Registers["rax"] = uint64(d.cfg.MagicStartIndex)
	sim.FireMagic(cpu, int64(stopreason.StartBufPtrSizePtr))
	require.Equal(t, StateRunning, d.State())

	idx := d.CoverageMap().IndexFor(0x1000)
	sim.FireInstructionExecute(cpu, 0x1000, []byte{0x3d, 0x07, 0x00, 0x00, 0x00})

	assert.EqualValues(t, 1, d.CoverageMap().Bytes()[idx])
	require.Equal(t, 1, d.ExecutionTrace().Len())
	assert.Equal(t, uint64(0x1000), d.ExecutionTrace().Entries()[0].PC)

	cmplogIdx := cmplog.HashIndex(0x1000, d.CmplogMap().Headers())
	hdr := d.CmplogMap().HeaderAt(cmplogIdx)
	assert.EqualValues(t, 1, hdr.Hits)
	op := d.CmplogMap().OperandAt(cmplogIdx, 0)
	assert.EqualValues(t, 5, op.A)
	assert.EqualValues(t, 7, op.B)
}
