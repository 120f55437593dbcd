// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzlib describes the boundary between simcore and the
// evolutionary fuzzer library (spec.md §1, "Out of scope": "the core
// exposes a two-channel harness to it and treats it as a black box").
// simcore never imports a mutation/scheduling/corpus engine directly; it
// only exchanges Testcase and ExitKind values across the two bounded
// channels declared here.
package fuzzlib

import "sync"

// ExitKind is what the simulator thread reports back to the fuzzer thread
// after one iteration, matching spec.md §5.
type ExitKind int

const (
	ExitOk ExitKind = iota
	ExitCrash
	ExitTimeout
)

func (k ExitKind) String() string {
	switch k {
	case ExitOk:
		return "Ok"
	case ExitCrash:
		return "Crash"
	case ExitTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Testcase is one input the fuzzer library wants written into the guest's
// buffer for the next iteration.
type Testcase struct {
	Bytes          []byte
	CmplogEnabled  bool
}

// Channels bundles the two bounded SPSC queues and the one-shot shutdown
// signal described in spec.md §5. The simulator thread owns the receive
// end of Testcases and the send end of ExitKinds; the fuzzer thread owns
// the opposite ends.
type Channels struct {
	// ExitKinds carries simulator→fuzzer exit classifications, one per
	// completed iteration, strict FIFO.
	ExitKinds chan ExitKind
	// Testcases carries fuzzer→simulator inputs, one per iteration,
	// strict FIFO, paired 1:1 with ExitKinds.
	Testcases chan Testcase
	// Shutdown is closed by either side to request a graceful stop; the
	// simulator thread observes this on its next stop and returns
	// without resuming (spec.md §5, "Cancellation & timeout").
	Shutdown chan struct{}

	shutdownOnce sync.Once
}

// NewChannels builds a Channels value with the given bound on both queues.
// A bound of 1 is sufficient and matches the "every testcase is paired
// with exactly one exit-kind, in strict FIFO order" invariant: the driver
// never needs to buffer more than the iteration currently in flight.
func NewChannels(bound int) *Channels {
	if bound < 1 {
		bound = 1
	}
	return &Channels{
		ExitKinds: make(chan ExitKind, bound),
		Testcases: make(chan Testcase, bound),
		Shutdown:  make(chan struct{}),
	}
}

// CloseShutdown closes the Shutdown channel exactly once; safe to call
// from either thread, any number of times.
func (c *Channels) CloseShutdown() {
	c.shutdownOnce.Do(func() { close(c.Shutdown) })
}
