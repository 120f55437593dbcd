// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package driver implements the Fuzzing Driver (component E of spec.md
// §4.E): the state machine that bridges the fuzzer thread's Testcase /
// ExitKind channels to the simulator thread's start/stop rendezvous,
// snapshot restore, and coverage reset, one iteration at a time.
package driver

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sim-fuzz/simcore/pkg/arch"
	"github.com/sim-fuzz/simcore/pkg/classifier"
	"github.com/sim-fuzz/simcore/pkg/cmplog"
	"github.com/sim-fuzz/simcore/pkg/config"
	"github.com/sim-fuzz/simcore/pkg/cover"
	"github.com/sim-fuzz/simcore/pkg/fuzzlib"
	"github.com/sim-fuzz/simcore/pkg/log"
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
	"github.com/sim-fuzz/simcore/pkg/snapshot"
	"github.com/sim-fuzz/simcore/pkg/stopreason"
	"github.com/sim-fuzz/simcore/pkg/trace"
)

// State tags the driver's position in the state machine of spec.md §4.E.
type State int

const (
	StateUninitialized State = iota
	StateArmedFirst
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateArmedFirst:
		return "ArmedFirst"
	case StateRunning:
		return "Running"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Driver owns one campaign's worth of state: the architecture adapter,
// the coverage and cmplog maps, the snapshot manager, the stop classifier,
// and the fuzzer-thread channels. It is not safe for concurrent use: every
// method that touches simulator state runs on the simulator thread, per
// spec.md §5.
type Driver struct {
	sim       simapi.Simulator
	cfg       *config.Configuration
	adapter   arch.Adapter
	classifier *classifier.Classifier
	snapshots *snapshot.Manager
	box       *stopreason.Box
	channels  *fuzzlib.Channels

	coverMap  *cover.Map
	cmplogMap *cmplog.Map
	execTrace *trace.Trace

	campaignID uuid.UUID
	processor  *simapi.ConfObject
	instrHandle simapi.HapHandle

	state      State
	iteration  uint64
	solutions  uint64
	timeouts   uint64
	startTime  time.Time
	paused     bool

	startBuffer     arch.StartBuffer
	startSize       arch.StartSize
	haveStartBuffer bool

	reproTestcase []byte
	reproActive   bool
	stoppedForRepro bool
}

// New constructs a Driver. cfg is shared with the Harness Interface; the
// driver only reads it, the harness is the sole writer of its fields.
func New(sim simapi.Simulator, cfg *config.Configuration, channels *fuzzlib.Channels) *Driver {
	box := &stopreason.Box{}
	d := &Driver{
		sim:        sim,
		cfg:        cfg,
		classifier: classifier.New(sim, cfg, box),
		box:        box,
		channels:   channels,
		campaignID: uuid.New(),
		state:      StateUninitialized,
	}
	d.classifier.SetOnStopped(d.handleStop)
	return d
}

// CampaignID identifies this Driver instance for logging and corpus
// bookkeeping, grounded on the teacher's use of randomly assigned
// identifiers to disambiguate concurrent fuzzing instances.
func (d *Driver) CampaignID() uuid.UUID { return d.campaignID }

func (d *Driver) State() State       { return d.state }
func (d *Driver) Iteration() uint64  { return d.iteration }
func (d *Driver) Solutions() uint64  { return d.solutions }
func (d *Driver) Timeouts() uint64   { return d.timeouts }
func (d *Driver) CoverageMap() *cover.Map   { return d.coverMap }
func (d *Driver) CmplogMap() *cmplog.Map    { return d.cmplogMap }
func (d *Driver) ExecutionTrace() *trace.Trace { return d.execTrace }

// ElapsedSeconds and ExecPerSec report the campaign's throughput since its
// first start rendezvous, per spec.md §3's start_time counter.
func (d *Driver) ElapsedSeconds() float64 {
	if d.startTime.IsZero() {
		return 0
	}
	return time.Since(d.startTime).Seconds()
}

func (d *Driver) ExecPerSec() float64 {
	elapsed := d.ElapsedSeconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(d.iteration) / elapsed
}

// Initialize resolves the architecture adapter for cpu, allocates the
// coverage/cmplog maps per the current configuration, and subscribes the
// classifier's HAPs. Called once, before the simulation is first resumed.
func (d *Driver) Initialize(cpu *simapi.ConfObject) error {
	reported, err := d.sim.ReportedArchitecture(cpu)
	if err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "reading reported architecture")
	}
	adapter, err := arch.Resolve(reported, d.cfg.ArchitectureHint)
	if err != nil {
		return err
	}
	d.adapter = adapter
	d.processor = cpu
	d.classifier.SetAdapter(adapter)

	d.snapshots = snapshot.NewManager(d.sim, d.cfg.SnapshotBackend)
	d.coverMap = cover.New(d.cfg.CoverageMapLen, d.cfg.TracingMode)
	if d.cfg.CmplogEnabled {
		d.cmplogMap = cmplog.New(d.cfg.CmplogHeaders, d.cfg.CmplogSlots)
	}
	d.execTrace = trace.New(d.cfg.ExecutionTraceSave == trace.SaveNone)

	d.classifier.SetProcessor(cpu)
	if err := d.classifier.Start(); err != nil {
		return err
	}
	ih, err := d.sim.SubscribeInstructionExecute(d.handleInstructionExecute)
	if err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "subscribing instruction-execute HAP")
	}
	d.instrHandle = ih
	d.state = StateArmedFirst
	log.Logf(1, "driver %s: initialized for architecture %s, waiting for first start rendezvous", d.campaignID, adapter.Name())
	return nil
}

// SetReproTestcase switches the driver into repro mode: instead of
// reading testcases from the channel, every iteration replays the same
// bytes, and the driver pauses after each stop instead of continuing on
// its own (StoppedForRepro reports the pause). If repro mode is set before
// the first magic start rendezvous, that rendezvous also sets a
// reverse-execution bookmark named "start".
func (d *Driver) SetReproTestcase(bytes []byte) {
	d.reproTestcase = append([]byte(nil), bytes...)
	d.reproActive = true
}

// StoppedForRepro reports whether the driver is currently paused after a
// repro-mode iteration, waiting for the caller to inspect guest state
// before resuming.
func (d *Driver) StoppedForRepro() bool { return d.stoppedForRepro }

// Resume clears the repro pause flags. It does not resume the simulator
// itself; the caller (typically a CLI) does that.
func (d *Driver) Resume() { d.stoppedForRepro = false; d.paused = false }

// TriggerManualStart performs the first-start rendezvous on command,
// rather than waiting for a magic-instruction HAP: the path used by
// harness.start()/start_with_maximum_size()/start_without_buffer() calls
// driven directly from a configuration script instead of a guest ABI
// convention.
func (d *Driver) TriggerManualStart(reason *stopreason.StopReason) error {
	if d.state != StateArmedFirst {
		return serr.New(serr.ConfigError, "TriggerManualStart called outside the ArmedFirst state")
	}
	if err := d.snapshots.SaveInitial(); err != nil {
		return err
	}
	if err := d.resolveStartDescriptor(reason); err != nil {
		return err
	}
	tc, ok := d.nextTestcase()
	if !ok {
		d.finish()
		return nil
	}
	if err := d.writeTestcase(tc); err != nil {
		return err
	}
	if err := d.armIteration(); err != nil {
		return err
	}
	d.startTime = time.Now()
	d.iteration++
	d.state = StateRunning
	return nil
}

// ForceManualStartNoBuffer triggers a manual start that writes no
// testcase buffer at all, for harnesses whose guest supplies its own
// input.
func (d *Driver) ForceManualStartNoBuffer(cpu *simapi.ConfObject) error {
	return d.TriggerManualStart(&stopreason.StopReason{Kind: stopreason.KindManualStartNoBuffer, Processor: cpu})
}

// InjectSolution records a solution classified outside the classifier's
// own HAP handlers, e.g. a guest-side assertion library the harness
// exposes a direct callback to (spec.md §4.F's "solution()" entry point).
func (d *Driver) InjectSolution(cpu *simapi.ConfObject, kind stopreason.SolutionKind, message string) error {
	reason := &stopreason.StopReason{Kind: stopreason.KindSolution, Processor: cpu, Solution: kind, Message: message}
	if !d.box.TrySet(reason) {
		return serr.New(serr.InternalInvariantViolation, "InjectSolution: a StopReason is already pending")
	}
	return d.sim.RequestBreak()
}

// Bookmark and ReverseTo expose the reverse-execution primitives used by
// repro mode's step-back inspection (scenario S6), forwarding directly to
// the simulator.
func (d *Driver) Bookmark(name string) error    { return d.sim.SetBookmark(name) }
func (d *Driver) ReverseTo(name string) error   { return d.sim.ReverseToBookmark(name) }

// Run drives the campaign until the fuzzer library closes channels.Shutdown
// or the simulator stops producing further iterations (state reaches
// StateDone). It supervises one extra goroutine watching for external
// cancellation and shutdown so ContinueSimulation is never left blocked
// past a requested stop, the same responsibility syzkaller's Proc.loop
// gives its own cancellation channel, generalized here to errgroup per
// SPEC_FULL.md's domain stack.
func (d *Driver) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-d.channels.Shutdown:
		case <-gctx.Done():
		}
		if err := d.sim.Quit(0); err != nil {
			return serr.Wrap(serr.SimulatorApiError, err, "requesting simulator quit on shutdown")
		}
		return nil
	})
	g.Go(func() error {
		for {
			if err := d.sim.ContinueSimulation(); err != nil {
				return serr.Wrap(serr.SimulatorApiError, err, "resuming simulation")
			}
			if d.state == StateDone || d.paused {
				d.channels.CloseShutdown()
				return nil
			}
		}
	})
	return g.Wait()
}

// handleStop is the classifier's single rendezvous callback: it runs
// synchronously, on the simulator thread, immediately after a
// simulation-stopped HAP has been normalized into a pending StopReason.
// It implements the ordering guarantee of spec.md §4.E: "stop → cancel
// timeout → classify → ...".
func (d *Driver) handleStop() {
	if err := d.classifier.CancelTimeout(); err != nil {
		d.fatal(err)
		return
	}
	reason := d.box.Take()
	if reason.None() {
		d.fatal(serr.New(serr.InternalInvariantViolation, "handleStop invoked with no pending StopReason"))
		return
	}
	switch d.state {
	case StateUninitialized:
		d.fatal(serr.New(serr.InternalInvariantViolation, "handleStop invoked before Initialize"))
	case StateArmedFirst:
		d.handleFirstStop(reason)
	default:
		d.handleIterationStop(reason)
	}
}

func isStartReason(r *stopreason.StopReason) bool {
	switch r.Kind {
	case stopreason.KindMagic:
		return r.MagicNumber.IsStart()
	case stopreason.KindManualStart, stopreason.KindManualStartNoBuffer:
		return true
	default:
		return false
	}
}

// handleFirstStop waits out any stop that is not itself the first start
// rendezvous: per spec.md §4.E, a stop before any start resumes without
// restoring or touching the snapshot manager at all.
func (d *Driver) handleFirstStop(reason *stopreason.StopReason) {
	if !isStartReason(reason) {
		log.Logf(2, "driver %s: ignoring pre-start stop (%v)", d.campaignID, reason.Kind)
		return
	}
	if err := d.snapshots.SaveInitial(); err != nil {
		d.fatal(err)
		return
	}
	if d.reproActive {
		if err := d.sim.SetBookmark("start"); err != nil {
			d.fatal(serr.Wrap(serr.SimulatorApiError, err, "setting repro bookmark"))
			return
		}
	}
	if err := d.resolveStartDescriptor(reason); err != nil {
		d.fatal(err)
		return
	}
	tc, ok := d.nextTestcase()
	if !ok {
		d.finish()
		return
	}
	if err := d.writeTestcase(tc); err != nil {
		d.fatal(err)
		return
	}
	if err := d.armIteration(); err != nil {
		d.fatal(err)
		return
	}
	d.startTime = time.Now()
	d.iteration++
	d.state = StateRunning
}

// resolveStartDescriptor extracts the StartBuffer/StartSize pair this
// campaign will write every testcase into, from either the magic ABI
// convention (component A) or a manual harness.start() call.
func (d *Driver) resolveStartDescriptor(reason *stopreason.StopReason) error {
	switch reason.Kind {
	case stopreason.KindMagic:
		buf, err := arch.GetMagicStartBuffer(d.adapter, d.sim, reason.Processor)
		if err != nil {
			return err
		}
		readsFromMemory := reason.MagicNumber == stopreason.StartBufPtrSizePtr || reason.MagicNumber == stopreason.StartBufPtrSizePtrVal
		size, err := arch.GetMagicStartSize(d.adapter, d.sim, reason.Processor, readsFromMemory)
		if err != nil {
			return err
		}
		d.startBuffer = buf
		d.startSize = size
		d.haveStartBuffer = true
	case stopreason.KindManualStart:
		info := reason.ManualStart
		buf, err := d.translateIfVirtual(reason.Processor, info.BufferAddress, info.Virtual)
		if err != nil {
			return err
		}
		d.startBuffer = arch.StartBuffer{PhysicalAddress: buf, WasVirtual: info.Virtual}
		if info.HasSizeAddr {
			sizeAddr, err := d.translateIfVirtual(reason.Processor, info.SizeAddress, info.Virtual)
			if err != nil {
				return err
			}
			var initialCap uint64
			for i := 0; i < d.adapter.PointerWidthBytes(); i++ {
				b, err := d.sim.ReadGuestByte(reason.Processor, sizeAddr+uint64(i))
				if err != nil {
					return serr.Wrap(serr.SimulatorApiError, err, "reading size field at 0x%x", sizeAddr+uint64(i))
				}
				initialCap |= uint64(b) << uint(8*i)
			}
			d.startSize = arch.StartSize{Kind: arch.StartSizeAddress, PhysicalAddress: sizeAddr, WasVirtual: info.Virtual, InitialCap: initialCap}
		} else {
			d.startSize = arch.StartSize{Kind: arch.StartSizeMaximumOnly, MaximumOnly: info.MaximumSize}
		}
		d.haveStartBuffer = true
	case stopreason.KindManualStartNoBuffer:
		d.haveStartBuffer = false
	}
	return nil
}

func (d *Driver) translateIfVirtual(cpu *simapi.ConfObject, addr uint64, virtual bool) (uint64, error) {
	if !virtual {
		return addr, nil
	}
	phys, err := d.adapter.TranslateVirtualToPhysical(d.sim, cpu, addr, simapi.AccessWrite)
	if err != nil {
		return 0, err
	}
	if !phys.Valid {
		return 0, serr.New(serr.GuestAddressError, "invalid linear address 0x%x in manual start descriptor", addr)
	}
	return phys.Address, nil
}

// handleIterationStop processes every stop once the campaign is Running:
// classify the exit kind, report it, pull the next testcase, restore, and
// arm the next iteration, per spec.md §4.E's full ordering guarantee.
func (d *Driver) handleIterationStop(reason *stopreason.StopReason) {
	if isStartReason(reason) {
		// The guest re-fired the start rendezvous while already Running:
		// per spec.md §4.E this is neither a new iteration's end nor a
		// new one's beginning. Leave the snapshot, testcase, and pending
		// ExitKind pairing untouched; only the trace resets, since it is
		// scoped to "since the last start", not to one full iteration.
		d.execTrace.Clear()
		log.Logf(2, "driver %s: ignoring re-fired start rendezvous while running", d.campaignID)
		return
	}

	exitKind := classifyExitKind(reason)
	isSolution := reason.Kind == stopreason.KindSolution
	if isSolution {
		d.solutions++
		if reason.Solution == stopreason.SolutionTimeout {
			d.timeouts++
		}
	}
	if trace.ShouldPersist(d.cfg.ExecutionTraceSave, isSolution, false) {
		path := solutionTracePath(d.cfg.SolutionsDirectory, d.campaignID, d.iteration)
		if err := d.execTrace.WriteTo(path); err != nil {
			log.Logf(0, "driver %s: writing execution trace failed: %v", d.campaignID, err)
		}
	}

	if d.reproActive {
		d.stoppedForRepro = true
		d.paused = true
		log.Logf(1, "driver %s: repro iteration stopped (%v)", d.campaignID, reason.Kind)
		return
	}

	if err := d.sendExitKind(exitKind); err != nil {
		d.fatal(err)
		return
	}

	tc, ok := d.nextTestcase()
	if !ok {
		d.finish()
		return
	}
	if err := d.snapshots.RestoreInitial(); err != nil {
		d.fatal(err)
		return
	}
	if err := d.writeTestcase(tc); err != nil {
		d.fatal(err)
		return
	}
	if err := d.armIteration(); err != nil {
		d.fatal(err)
		return
	}
	d.iteration++
	if d.cfg.IterationLimit > 0 && d.iteration >= d.cfg.IterationLimit {
		log.Logf(0, "driver %s: iteration limit %d reached, elapsed_seconds=%.2f exec_per_sec=%.2f solutions=%d timeouts=%d",
			d.campaignID, d.cfg.IterationLimit, d.ElapsedSeconds(), d.ExecPerSec(), d.solutions, d.timeouts)
		if d.cfg.QuitOnIterationLimit {
			d.finish()
		}
	}
}

// armIteration resets the per-iteration trackers and arms the timeout
// event for the testcase about to run; it is shared by the first start
// rendezvous and every subsequent iteration.
func (d *Driver) armIteration() error {
	d.coverMap.ResetIterationState()
	d.execTrace.Clear()
	if d.cfg.TimeoutSeconds > 0 {
		if err := d.classifier.ArmTimeout(d.processor, d.cfg.TimeoutSeconds); err != nil {
			return err
		}
	}
	return nil
}

// handleInstructionExecute implements the before-instruction hook of
// spec.md §4.B: feeds the coverage map, the cmplog map, and the execution
// trace from every instruction executed while an iteration is Running. It
// is a no-op before the first start rendezvous and once the campaign has
// finished, since coverMap/cmplogMap are only meaningful mid-iteration.
func (d *Driver) handleInstructionExecute(cpu *simapi.ConfObject, pc uint64, bytes []byte) {
	if d.state != StateRunning {
		return
	}
	c, err := d.adapter.DisassembleOne(bytes, pc)
	if err != nil {
		log.Logf(3, "driver %s: disassembling instruction at 0x%x failed: %v", d.campaignID, pc, err)
		return
	}
	c = d.adapter.ClassifyInstruction(c)

	if c.IsCall || c.IsControlFlow || c.IsRet {
		d.coverMap.RecordEdge(pc)
	}

	if d.cmplogMap != nil && c.IsCmp {
		d.recordCmplog(cpu, pc, c)
	}

	if d.cfg.ExecutionTraceSave != trace.SaveNone {
		d.execTrace.Append(pc, c.Mnemonic, bytes)
	}
}

// recordCmplog reduces a comparison instruction's two operand expressions
// to concrete integers and stores them in the cmplog map, per spec.md
// §4.B. Operands this module cannot reduce to a concrete value are
// silently skipped, mirroring the original tracer's fallible trace_cmp.
func (d *Driver) recordCmplog(cpu *simapi.ConfObject, pc uint64, c arch.Classification) {
	a, widthA, ok := d.reduceExpr(cpu, c.CmpLeft)
	if !ok {
		return
	}
	b, widthB, ok := d.reduceExpr(cpu, c.CmpRight)
	if !ok {
		return
	}
	width := widthA
	if widthB > width {
		width = widthB
	}
	if width == 0 {
		width = d.adapter.PointerWidthBytes() * 8
	}
	d.cmplogMap.Record(pc, width, a, b, attributeFromClassification(c.CmpAttribute))
}

func attributeFromClassification(a arch.CmpAttribute) cmplog.Attribute {
	return cmplog.AttributeFromClassification(a&arch.CmpEqual != 0, a&arch.CmpGreater != 0, a&arch.CmpLesser != 0)
}

// reduceExpr collapses a comparison operand expression tree to a concrete
// value, reading registers and guest memory as needed. It reports ok=false
// for expressions this module does not resolve to a value: an unmapped
// address, for instance, or a register read the simulator rejects.
func (d *Driver) reduceExpr(cpu *simapi.ConfObject, e *arch.Expr) (value uint64, widthBits int, ok bool) {
	if e == nil {
		return 0, 0, false
	}
	switch e.Kind {
	case arch.ExprImm:
		return e.Imm, e.Width, true
	case arch.ExprAddr:
		return e.Addr, e.Width, true
	case arch.ExprReg:
		v, err := d.adapter.ReadRegisterByName(d.sim, cpu, e.Reg)
		if err != nil {
			return 0, 0, false
		}
		return v, e.Width, true
	case arch.ExprDeref:
		addr, _, ok := d.reduceExpr(cpu, e.Left)
		if !ok {
			return 0, 0, false
		}
		width := e.Width
		if width == 0 {
			width = d.adapter.PointerWidthBytes() * 8
		}
		phys, err := d.adapter.TranslateVirtualToPhysical(d.sim, cpu, addr, simapi.AccessRead)
		if err != nil || !phys.Valid {
			return 0, 0, false
		}
		var v uint64
		for i := 0; i < width/8; i++ {
			b, err := d.sim.ReadGuestByte(cpu, phys.Address+uint64(i))
			if err != nil {
				return 0, 0, false
			}
			v |= uint64(b) << uint(8*i)
		}
		return v, width, true
	case arch.ExprAdd, arch.ExprSub, arch.ExprMul:
		left, widthL, ok := d.reduceExpr(cpu, e.Left)
		if !ok {
			return 0, 0, false
		}
		right, widthR, ok := d.reduceExpr(cpu, e.Right)
		if !ok {
			return 0, 0, false
		}
		width := widthL
		if widthR > width {
			width = widthR
		}
		switch e.Kind {
		case arch.ExprAdd:
			return left + right, width, true
		case arch.ExprSub:
			return left - right, width, true
		default:
			return left * right, width, true
		}
	case arch.ExprShift:
		left, width, ok := d.reduceExpr(cpu, e.Left)
		if !ok {
			return 0, 0, false
		}
		amount, _, ok := d.reduceExpr(cpu, e.Right)
		if !ok {
			return 0, 0, false
		}
		if width == 0 {
			width = 64
		}
		switch e.Shift {
		case arch.ShiftLSL:
			return left << amount, width, true
		case arch.ShiftLSR:
			return left >> amount, width, true
		case arch.ShiftASR:
			return uint64(int64(left) >> amount), width, true
		default: // ShiftROR
			amount %= uint64(width)
			if amount == 0 {
				return left, width, true
			}
			return (left >> amount) | (left << (uint64(width) - amount)), width, true
		}
	default:
		return 0, 0, false
	}
}

func (d *Driver) writeTestcase(tc fuzzlib.Testcase) error {
	if !d.haveStartBuffer {
		return nil
	}
	n, err := arch.WriteStart(d.adapter, d.sim, d.processor, tc.Bytes, d.startBuffer, d.startSize)
	if err != nil {
		return err
	}
	log.Logf(3, "driver %s: iteration %d wrote %d of %d requested bytes", d.campaignID, d.iteration, n, len(tc.Bytes))
	return nil
}

// nextTestcase pulls the next input the campaign should run, or reports
// false when the campaign should stop: either the fuzzer library closed
// its end of the channel, or shutdown was requested while waiting.
func (d *Driver) nextTestcase() (fuzzlib.Testcase, bool) {
	if d.reproActive {
		return fuzzlib.Testcase{Bytes: d.reproTestcase}, true
	}
	select {
	case tc, ok := <-d.channels.Testcases:
		if !ok {
			return fuzzlib.Testcase{}, false
		}
		return tc, true
	case <-d.channels.Shutdown:
		return fuzzlib.Testcase{}, false
	}
}

func (d *Driver) sendExitKind(k fuzzlib.ExitKind) error {
	select {
	case d.channels.ExitKinds <- k:
		return nil
	case <-d.channels.Shutdown:
		return serr.New(serr.ChannelClosed, "shutdown requested while sending exit kind")
	}
}

func (d *Driver) finish() {
	d.state = StateDone
	d.channels.CloseShutdown()
	log.Logf(0, "driver %s: finished after %d iterations", d.campaignID, d.iteration)
}

func (d *Driver) fatal(err error) {
	log.Logf(0, "driver %s: fatal error: %v", d.campaignID, err)
	d.state = StateDone
	d.channels.CloseShutdown()
}

func classifyExitKind(reason *stopreason.StopReason) fuzzlib.ExitKind {
	if reason.Kind != stopreason.KindSolution {
		return fuzzlib.ExitOk
	}
	if reason.Solution == stopreason.SolutionTimeout {
		return fuzzlib.ExitTimeout
	}
	return fuzzlib.ExitCrash
}

func solutionTracePath(dir string, campaign uuid.UUID, iteration uint64) string {
	return dir + "/" + campaign.String() + "-" + strconv.FormatUint(iteration, 10) + ".trace"
}
