// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package plugin is the simulator-facing class registration boundary.
// spec.md §9's design notes flag two recurring bugs in the original: a
// global singleton reached from free functions, and a reference cycle
// between the driver and the HAP callbacks closed over it. This package
// replaces the singleton with one atomic cell holding the registered
// Instance, and WithCurrent dispatches a callback to it, the same "single
// borrow helper keyed on an instance pointer field" pattern simapi.ConfObject
// uses for the simulator's own opaque handles. The HAP callbacks that
// pkg/classifier and pkg/driver subscribe are method values bound to their
// own Classifier and Driver; they do not go through this cell.
package plugin

import (
	"sync/atomic"

	"github.com/sim-fuzz/simcore/pkg/driver"
	"github.com/sim-fuzz/simcore/pkg/fuzzlib"
	"github.com/sim-fuzz/simcore/pkg/harness"
	"github.com/sim-fuzz/simcore/pkg/log"
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
)

// Instance is everything one registered plugin class instance owns. A
// real build constructs exactly one of these per simulator object the
// plugin class is instantiated against; class-registration code is the
// only thing that calls Register.
type Instance struct {
	Harness  *harness.Harness
	Driver   *driver.Driver
	Channels *fuzzlib.Channels
	Object   *simapi.ConfObject
}

var current atomic.Pointer[Instance]

// Register captures inst as the instance every subsequent HAP callback
// and timer callback should dispatch to, until Unregister is called.
// There is exactly one live instance at a time: simcore supports one
// fuzzing campaign per simulator process, matching spec.md §1's scope.
func Register(inst *Instance) {
	current.Store(inst)
	if inst.Object != nil {
		log.Logf(1, "plugin: registered instance for object %s", inst.Object)
	}
}

// Current returns the registered instance, or nil if none has been
// registered, or it has since been unregistered.
func Current() *Instance { return current.Load() }

// Unregister clears the registered instance, called once at class
// deletion so a dangling HAP firing after teardown fails loudly instead
// of dispatching into freed state.
func Unregister() { current.Store(nil) }

// WithCurrent looks up the registered instance and calls fn with it. A
// nil instance is an InternalInvariantViolation: it means a HAP fired
// either before class registration completed or after it was torn down,
// both of which indicate a lifecycle bug in the embedding simulator
// integration rather than guest behavior.
func WithCurrent(fn func(*Instance) error) error {
	inst := Current()
	if inst == nil {
		return serr.New(serr.InternalInvariantViolation, "HAP callback fired with no plugin instance registered")
	}
	return fn(inst)
}
