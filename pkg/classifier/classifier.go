// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package classifier implements the Stop Classifier and timeout engine
// (component C of spec.md §4.C): it subscribes to the simulator's HAPs,
// normalizes whatever made the simulation stop into a single
// stopreason.StopReason, and owns the one scheduled timeout event a
// running iteration may have outstanding.
package classifier

import (
	"golang.org/x/sync/semaphore"

	"github.com/sim-fuzz/simcore/pkg/arch"
	"github.com/sim-fuzz/simcore/pkg/config"
	"github.com/sim-fuzz/simcore/pkg/log"
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
	"github.com/sim-fuzz/simcore/pkg/stopreason"
)

// Classifier owns HAP subscriptions and the Box the Fuzzing Driver reads
// from. It does not itself decide what to do with a StopReason; that is
// the driver's job. It is not safe for concurrent use: every method here
// runs on the simulator thread, either directly or from a HAP callback
// the simulator invokes on that same thread.
type Classifier struct {
	sim     simapi.Simulator
	cfg     *config.Configuration
	box     *stopreason.Box
	adapter arch.Adapter

	exceptionHandle simapi.HapHandle
	breakpointHandle simapi.HapHandle
	stoppedHandle    simapi.HapHandle

	magicHandle     simapi.HapHandle
	magicSubscribed bool

	processor *simapi.ConfObject

	// onStopped, if set, is called once at the end of every
	// simulation-stopped HAP, after the box has been populated (or
	// confirmed already populated). This is the Fuzzing Driver's
	// rendezvous point: it never subscribes to the simulation-stopped HAP
	// itself, since the simulator allows only one subscriber per HAP.
	onStopped func()

	// timeoutSem is held (weight 1) from ArmTimeout until the event fires
	// or is cancelled, giving invariant 5 ("a pending timeout event exists
	// from the moment a testcase is written until the next stop") a
	// concrete gate: TryAcquire failing means a timeout is already armed,
	// which is a programming error in the driver.
	timeoutSem   *semaphore.Weighted
	timeoutEvent simapi.EventHandle
	timeoutArmed bool
}

// New builds a Classifier over sim using cfg for the configured magic,
// exception and breakpoint sets, storing classified reasons into box.
func New(sim simapi.Simulator, cfg *config.Configuration, box *stopreason.Box) *Classifier {
	return &Classifier{
		sim:        sim,
		cfg:        cfg,
		box:        box,
		timeoutSem: semaphore.NewWeighted(1),
	}
}

// SetProcessor records the processor the driver is currently running the
// testcase on; magic/exception/breakpoint callbacks are attributed to it
// when building a StopReason.
func (c *Classifier) SetProcessor(cpu *simapi.ConfObject) { c.processor = cpu }

// SetAdapter records the architecture adapter the driver resolved for
// this campaign's processor, used to read the magic index selector off
// its convention register (spec.md §4.A, "Magic index selector").
func (c *Classifier) SetAdapter(a arch.Adapter) { c.adapter = a }

// SetOnStopped registers the driver's rendezvous callback, invoked at the
// end of every handleStopped dispatch.
func (c *Classifier) SetOnStopped(fn func()) { c.onStopped = fn }

// Start subscribes to the always-needed HAPs (exception, breakpoint,
// simulation-stopped) and lazily to the magic-instruction HAP if the
// current configuration needs it. Grounded on the original driver's
// add_or_remove_magic_hap_if_needed, generalized to run once at startup
// and again any time the configuration changes (SyncMagicSubscription).
func (c *Classifier) Start() error {
	eh, err := c.sim.SubscribeException(c.handleException)
	if err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "subscribing exception HAP")
	}
	c.exceptionHandle = eh

	bh, err := c.sim.SubscribeBreakpointMemop(c.handleBreakpoint)
	if err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "subscribing breakpoint-memop HAP")
	}
	c.breakpointHandle = bh

	sh, err := c.sim.SubscribeSimulationStopped(c.handleStopped)
	if err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "subscribing simulation-stopped HAP")
	}
	c.stoppedHandle = sh

	return c.SyncMagicSubscription()
}

// Stop unsubscribes every HAP currently held, including the magic one if
// subscribed. Called once, at plugin teardown.
func (c *Classifier) Stop() error {
	if err := c.sim.UnsubscribeException(c.exceptionHandle); err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "unsubscribing exception HAP")
	}
	if err := c.sim.UnsubscribeBreakpointMemop(c.breakpointHandle); err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "unsubscribing breakpoint-memop HAP")
	}
	if err := c.sim.UnsubscribeSimulationStopped(c.stoppedHandle); err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "unsubscribing simulation-stopped HAP")
	}
	if c.magicSubscribed {
		if err := c.sim.UnsubscribeMagicInstruction(c.magicHandle); err != nil {
			return serr.Wrap(serr.SimulatorApiError, err, "unsubscribing magic-instruction HAP")
		}
		c.magicSubscribed = false
	}
	return nil
}

// wantsMagicHap reports whether the current configuration needs the
// magic-instruction HAP at all: start/stop-on-harness both ride the magic
// channel, as does every configured assert index.
func (c *Classifier) wantsMagicHap() bool {
	if c.cfg.StartOnHarness || c.cfg.StopOnHarness {
		return true
	}
	return len(c.cfg.MagicAssertIndices) > 0
}

// SyncMagicSubscription adds or removes the magic-instruction HAP to
// match the current configuration, grounded on the original driver's
// add_or_remove_magic_hap_if_needed: the magic HAP is a no-op tax on every
// magic instruction executed anywhere in the guest, so it is only held
// while at least one magic-driven feature is enabled.
func (c *Classifier) SyncMagicSubscription() error {
	want := c.wantsMagicHap()
	switch {
	case want && !c.magicSubscribed:
		h, err := c.sim.SubscribeMagicInstruction(c.handleMagic)
		if err != nil {
			return serr.Wrap(serr.SimulatorApiError, err, "subscribing magic-instruction HAP")
		}
		c.magicHandle = h
		c.magicSubscribed = true
		log.Logf(3, "classifier: magic-instruction HAP subscribed")
	case !want && c.magicSubscribed:
		if err := c.sim.UnsubscribeMagicInstruction(c.magicHandle); err != nil {
			return serr.Wrap(serr.SimulatorApiError, err, "unsubscribing magic-instruction HAP")
		}
		c.magicSubscribed = false
		log.Logf(3, "classifier: magic-instruction HAP unsubscribed")
	}
	return nil
}

// decodeMagicNumber maps the raw value the simulator's magic-instruction
// HAP reports to one of the five canonical kinds of spec.md §3, the same
// discriminant order stopreason.MagicKind declares them in.
func decodeMagicNumber(number int64) (stopreason.MagicKind, bool) {
	switch number {
	case int64(stopreason.StartBufPtrSizePtr), int64(stopreason.StartBufPtrSizeVal), int64(stopreason.StartBufPtrSizePtrVal),
		int64(stopreason.StopNormal), int64(stopreason.StopAssert):
		return stopreason.MagicKind(number), true
	default:
		return 0, false
	}
}

// handleMagic implements spec.md §4.C's magic-instruction rule: decode
// magic_number into a MagicKind, ignore triggers that are not processors,
// extract the index selector from the architecture's convention register
// (spec.md §4.A) and check it against the kind's configured index set
// before emitting a StopReason. The magic number and the index selector
// are independent: the number says which guest ABI convention fired, the
// register says which call site in the guest fired it.
func (c *Classifier) handleMagic(trigger *simapi.ConfObject, number int64) {
	kind, ok := decodeMagicNumber(number)
	if !ok {
		log.Logf(2, "classifier: unrecognized magic number %d, ignoring", number)
		return
	}
	if !c.sim.ObjectIsProcessor(trigger) {
		log.Logf(0, "classifier: magic instruction triggered by a non-processor object, ignoring")
		return
	}
	if c.adapter == nil {
		log.Logf(0, "classifier: magic instruction fired before an architecture adapter was resolved, ignoring")
		return
	}
	selector, err := c.adapter.ReadRegisterByName(c.sim, trigger, c.adapter.MagicIndexRegister())
	if err != nil {
		log.Logf(0, "classifier: reading magic index selector failed: %v", err)
		return
	}
	index := int64(selector)

	var matched bool
	switch kind {
	case stopreason.StartBufPtrSizePtr, stopreason.StartBufPtrSizeVal, stopreason.StartBufPtrSizePtrVal:
		matched = c.cfg.StartOnHarness && index == c.cfg.MagicStartIndex
	case stopreason.StopNormal:
		matched = c.cfg.StopOnHarness && c.cfg.MagicStopIndices[index]
	case stopreason.StopAssert:
		matched = c.cfg.MagicAssertIndices[index]
	}
	if !matched {
		// A magic instruction the current configuration does not assign
		// meaning to; leave the box untouched so an unrelated rendezvous
		// instruction elsewhere in the guest never produces a stop.
		log.Logf(3, "classifier: magic kind %v index %d not configured, ignoring", kind, index)
		return
	}

	reason := &stopreason.StopReason{
		Kind:        stopreason.KindMagic,
		Processor:   trigger,
		MagicNumber: kind,
	}
	if kind == stopreason.StopAssert {
		reason.Kind = stopreason.KindSolution
		reason.Solution = stopreason.SolutionManual
		reason.Message = "magic assert instruction executed"
	}
	if !c.box.TrySet(reason) {
		log.Logf(0, "classifier: dropped magic stop reason, one already pending")
	}
	if err := c.sim.RequestBreak(); err != nil {
		log.Logf(0, "classifier: RequestBreak after magic instruction failed: %v", err)
	}
}

func (c *Classifier) handleException(cpu *simapi.ConfObject, exception int64) {
	if !c.cfg.AllExceptionsAreSolutions && !c.cfg.ConfiguredExceptions[exception] {
		return
	}
	reason := &stopreason.StopReason{
		Kind:      stopreason.KindSolution,
		Processor: cpu,
		Solution:  stopreason.SolutionException,
		Message:   "guest exception raised",
	}
	if !c.box.TrySet(reason) {
		log.Logf(0, "classifier: dropped exception solution, one already pending")
	}
	if err := c.sim.RequestBreak(); err != nil {
		log.Logf(0, "classifier: RequestBreak after exception failed: %v", err)
	}
}

func (c *Classifier) handleBreakpoint(cpu *simapi.ConfObject, breakpoint int64) {
	if !c.cfg.AllBreakpointsAreSolutions && !c.cfg.ConfiguredBreakpoints[breakpoint] {
		return
	}
	reason := &stopreason.StopReason{
		Kind:      stopreason.KindSolution,
		Processor: cpu,
		Solution:  stopreason.SolutionBreakpoint,
		Message:   "configured breakpoint-memop hit",
	}
	if !c.box.TrySet(reason) {
		log.Logf(0, "classifier: dropped breakpoint solution, one already pending")
	}
	if err := c.sim.RequestBreak(); err != nil {
		log.Logf(0, "classifier: RequestBreak after breakpoint failed: %v", err)
	}
}

// handleStopped fires whenever the simulation stops, for any reason. If a
// magic/exception/breakpoint/timeout callback already classified this
// stop, the box is already populated and this is a no-op: the driver will
// Take() what is pending. If nothing is pending, the stop came from
// somewhere outside the classifier's view (a manual script pause, for
// instance) and is recorded as an unclassified manual stop.
func (c *Classifier) handleStopped() {
	if !c.box.Pending() {
		c.box.Set(&stopreason.StopReason{Kind: stopreason.KindManualStop, Processor: c.processor})
	}
	if c.onStopped != nil {
		c.onStopped()
	}
}

// ArmTimeout posts a timeout event seconds in the future on cpu's clock.
// It must not be called while a timeout is already armed; CancelTimeout
// or the event firing releases the gate first.
func (c *Classifier) ArmTimeout(cpu *simapi.ConfObject, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	if !c.timeoutSem.TryAcquire(1) {
		return serr.New(serr.InternalInvariantViolation, "ArmTimeout called while a timeout event is already pending")
	}
	h, err := c.sim.PostEvent(cpu, seconds, nil, c.handleTimeoutEvent)
	if err != nil {
		c.timeoutSem.Release(1)
		return serr.Wrap(serr.SimulatorApiError, err, "posting timeout event")
	}
	c.timeoutEvent = h
	c.timeoutArmed = true
	return nil
}

// CancelTimeout cancels a pending timeout event, if one is armed. It is a
// no-op if none is armed, so the driver may call it unconditionally on
// every stop per the state-machine ordering of spec.md §4.E: "stop →
// cancel timeout → classify".
func (c *Classifier) CancelTimeout() error {
	if !c.timeoutArmed {
		return nil
	}
	c.timeoutArmed = false
	c.timeoutSem.Release(1)
	if err := c.sim.CancelEvent(c.timeoutEvent); err != nil {
		return serr.Wrap(serr.SimulatorApiError, err, "cancelling timeout event")
	}
	return nil
}

func (c *Classifier) handleTimeoutEvent(cpu *simapi.ConfObject, _ interface{}) {
	c.timeoutArmed = false
	c.timeoutSem.Release(1)
	reason := &stopreason.StopReason{
		Kind:      stopreason.KindSolution,
		Processor: cpu,
		Solution:  stopreason.SolutionTimeout,
		Message:   "iteration exceeded configured timeout",
	}
	if !c.box.TrySet(reason) {
		log.Logf(0, "classifier: dropped timeout solution, one already pending")
	}
	if err := c.sim.RequestBreak(); err != nil {
		log.Logf(0, "classifier: RequestBreak after timeout failed: %v", err)
	}
}

// TimeoutArmed reports whether a timeout event is currently outstanding,
// exposed for tests asserting invariant 5 of spec.md §8.
func (c *Classifier) TimeoutArmed() bool { return c.timeoutArmed }
