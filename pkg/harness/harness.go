// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package harness implements the Harness Interface (component F of
// spec.md §4.F): the scriptable surface a simulator configuration script
// or a guest-side magic instruction drives to configure and control one
// fuzzing campaign. Every method here is a thin façade over a single
// config.Builder call or a single driver/classifier operation, per
// spec.md §9's design note on collapsing the many individual setters into
// one typed Configuration.
package harness

import (
	"github.com/sim-fuzz/simcore/pkg/arch"
	"github.com/sim-fuzz/simcore/pkg/config"
	"github.com/sim-fuzz/simcore/pkg/driver"
	"github.com/sim-fuzz/simcore/pkg/fuzzlib"
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
	"github.com/sim-fuzz/simcore/pkg/stopreason"
)

// Harness is the object a configuration script holds one instance of per
// campaign. Configuration setters only take effect once Start commits
// them into a Driver; calling a setter after Start returns a ConfigError,
// matching spec.md §4.F's "configuration is immutable once the campaign
// has started" edge case.
type Harness struct {
	builder *config.Builder
	sim     simapi.Simulator
	channels *fuzzlib.Channels
	driver   *driver.Driver
	started  bool
}

// New returns a Harness ready to be configured against sim.
func New(sim simapi.Simulator) *Harness {
	return &Harness{builder: config.NewBuilder(), sim: sim}
}

func (h *Harness) checkNotStarted() error {
	if h.started {
		return serr.New(serr.ConfigError, "harness: configuration is immutable once the campaign has started")
	}
	return nil
}

// --- Magic / manual start-stop wiring (spec.md §4.F) ---

func (h *Harness) SetStartOnHarness(v bool) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetStartOnHarness(v)
	return nil
}

func (h *Harness) SetStopOnHarness(v bool) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetStopOnHarness(v)
	return nil
}

func (h *Harness) SetMagicStart(n int64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetMagicStart(n)
	return nil
}

func (h *Harness) AddMagicStop(n int64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.AddMagicStop(n)
	return nil
}

func (h *Harness) AddMagicAssert(n int64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.AddMagicAssert(n)
	return nil
}

func (h *Harness) SetArchitectureHint(hint arch.Hint) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetArchitectureHint(hint)
	return nil
}

// --- Tracing / cmplog (spec.md §4.B, §4.F) ---

func (h *Harness) SetTracingMode(mode string) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetTracingMode(mode)
	return nil
}

func (h *Harness) SetCmplogEnabled(v bool) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetCmplogEnabled(v)
	return nil
}

func (h *Harness) SetExecutionTraceSave(mode string) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetExecutionTraceSave(mode)
	return nil
}

// --- Snapshot backend (spec.md §4.D, §4.F) ---

func (h *Harness) SetSnapshotBackend(backend string) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetSnapshotBackend(backend)
	return nil
}

// --- Timeout and solution sources (spec.md §4.C, §4.F) ---

func (h *Harness) SetTimeout(seconds float64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetTimeout(seconds)
	return nil
}

func (h *Harness) AddExceptionSolution(e int64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.AddExceptionSolution(e)
	return nil
}

func (h *Harness) RemoveExceptionSolution(e int64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.RemoveExceptionSolution(e)
	return nil
}

func (h *Harness) SetAllExceptionsAreSolutions(v bool) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetAllExceptionsAreSolutions(v)
	return nil
}

func (h *Harness) AddBreakpointSolution(bp int64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.AddBreakpointSolution(bp)
	return nil
}

func (h *Harness) SetAllBreakpointsAreSolutions(v bool) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetAllBreakpointsAreSolutions(v)
	return nil
}

// --- Corpus / solutions directories (spec.md §4.F, §6) ---

func (h *Harness) SetCorpusDirectory(p string) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetCorpusDirectory(p)
	return nil
}

func (h *Harness) SetSolutionsDirectory(p string) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetSolutionsDirectory(p)
	return nil
}

func (h *Harness) SetGenerateRandomCorpus(v bool) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetGenerateRandomCorpus(v)
	return nil
}

func (h *Harness) SetIterationLimit(n uint64) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetIterationLimit(n)
	return nil
}

func (h *Harness) SetQuitOnIterationLimit(v bool) error {
	if err := h.checkNotStarted(); err != nil {
		return err
	}
	h.builder.SetQuitOnIterationLimit(v)
	return nil
}

// --- Lifecycle ---

// Start commits the accumulated configuration, builds the Driver, and
// initializes it against cpu. After Start returns successfully every
// setter above returns a ConfigError instead of mutating state.
func (h *Harness) Start(cpu *simapi.ConfObject, channels *fuzzlib.Channels) (*driver.Driver, error) {
	if h.started {
		return nil, serr.New(serr.ConfigError, "harness: Start called twice")
	}
	cfg, err := h.builder.Build()
	if err != nil {
		return nil, err
	}
	h.channels = channels
	h.driver = driver.New(h.sim, &cfg, channels)
	if err := h.driver.Initialize(cpu); err != nil {
		return nil, err
	}
	h.started = true
	return h.driver, nil
}

// StartWithoutBuffer is the manual-start variant of spec.md §4.F used by
// harnesses whose guest reads its own input and only needs snapshot reset
// and coverage bookkeeping from simcore, never a written buffer.
func (h *Harness) StartWithoutBuffer(cpu *simapi.ConfObject, channels *fuzzlib.Channels) (*driver.Driver, error) {
	drv, err := h.Start(cpu, channels)
	if err != nil {
		return nil, err
	}
	if err := drv.ForceManualStartNoBuffer(cpu); err != nil {
		return nil, err
	}
	return drv, nil
}

// StartWithBuffer is the manual-start variant of spec.md §4.F's
// start(testcase_addr, size_addr, virt): the guest's input buffer and a
// size field it reads back are both at fixed, harness-supplied addresses
// instead of being discovered through the magic ABI convention.
func (h *Harness) StartWithBuffer(cpu *simapi.ConfObject, channels *fuzzlib.Channels, testcaseAddr, sizeAddr uint64, virt bool) (*driver.Driver, error) {
	drv, err := h.Start(cpu, channels)
	if err != nil {
		return nil, err
	}
	reason := &stopreason.StopReason{
		Kind:      stopreason.KindManualStart,
		Processor: cpu,
		ManualStart: stopreason.ManualStartInfo{
			BufferAddress: testcaseAddr,
			SizeAddress:   sizeAddr,
			Virtual:       virt,
			HasSizeAddr:   true,
		},
	}
	if err := drv.TriggerManualStart(reason); err != nil {
		return nil, err
	}
	return drv, nil
}

// StartWithMaximumSize is the manual-start variant of spec.md §4.F's
// start_with_maximum_size(testcase_addr, cap, virt): the guest's input
// buffer is at a fixed address with a fixed capacity and reads no size
// field back at all.
func (h *Harness) StartWithMaximumSize(cpu *simapi.ConfObject, channels *fuzzlib.Channels, testcaseAddr, cap uint64, virt bool) (*driver.Driver, error) {
	drv, err := h.Start(cpu, channels)
	if err != nil {
		return nil, err
	}
	reason := &stopreason.StopReason{
		Kind:      stopreason.KindManualStart,
		Processor: cpu,
		ManualStart: stopreason.ManualStartInfo{
			BufferAddress: testcaseAddr,
			MaximumSize:   cap,
			Virtual:       virt,
			HasSizeAddr:   false,
		},
	}
	if err := drv.TriggerManualStart(reason); err != nil {
		return nil, err
	}
	return drv, nil
}

// Stop requests a graceful end to the campaign: it closes the shared
// shutdown channel, the same signal the fuzzer library uses.
func (h *Harness) Stop() {
	if h.channels != nil {
		h.channels.CloseShutdown()
	}
}

// Solution programmatically reports a manual solution found outside the
// classifier's own exception/breakpoint/timeout detection, e.g. from a
// guest-side assertion library that calls back into the harness directly.
func (h *Harness) Solution(cpu *simapi.ConfObject, message string) error {
	if !h.started {
		return serr.New(serr.ConfigError, "harness: Solution called before Start")
	}
	return h.driver.InjectSolution(cpu, stopreason.SolutionManual, message)
}
