// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config groups the many individual setters of the Harness
// Interface (spec.md §4.F) into one typed Configuration value built with
// a builder, per spec.md §9's design note: "Configuration as many
// individual setters on the interface... Group into a typed Configuration
// value with a builder; the interface setters are thin façades over field
// writes."
package config

import (
	"github.com/sim-fuzz/simcore/pkg/arch"
	"github.com/sim-fuzz/simcore/pkg/cover"
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/snapshot"
	"github.com/sim-fuzz/simcore/pkg/trace"
)

// SolutionSource is the closed enumeration from spec.md §9. It is
// informational bookkeeping over the classifier's exception/breakpoint
// sets and manual/timeout paths; the classifier itself still evaluates
// each configured set independently.
type SolutionSource int

const (
	SolutionSourceExceptionSet SolutionSource = iota
	SolutionSourceBreakpointSet
	SolutionSourceAllExceptions
	SolutionSourceAllBreakpoints
	SolutionSourceMagicAssert
	SolutionSourceManual
	SolutionSourceTimeout
)

// Configuration is the campaign-wide settings value. Most fields here
// correspond to one or more harness setters (spec.md §4.F);
// CoverageMapLen, CmplogHeaders and CmplogSlots have no setter and keep
// their Default values unless assigned directly.
type Configuration struct {
	StartOnHarness bool
	StopOnHarness  bool

	MagicStartIndex   int64
	MagicStopIndices  map[int64]bool
	MagicAssertIndices map[int64]bool

	ArchitectureHint arch.Hint

	TracingMode    cover.Mode
	CmplogEnabled  bool
	CoverageMapLen int
	CmplogHeaders  int
	CmplogSlots    int

	ExecutionTraceSave trace.SaveMode

	SnapshotBackend snapshot.Backend

	TimeoutSeconds float64

	AllExceptionsAreSolutions bool
	ConfiguredExceptions      map[int64]bool
	AllBreakpointsAreSolutions bool
	ConfiguredBreakpoints      map[int64]bool

	CorpusDirectory          string
	SolutionsDirectory       string
	GenerateRandomCorpus     bool

	IterationLimit      uint64
	QuitOnIterationLimit bool
}

// Default returns a Configuration with the same defaults spec.md implies:
// tracing disabled beyond hit-count, native snapshots off (micro-checkpoint
// is the historical default backend), and no limits.
func Default() Configuration {
	return Configuration{
		MagicStartIndex:    1,
		MagicStopIndices:   map[int64]bool{2: true},
		MagicAssertIndices: map[int64]bool{},
		TracingMode:        cover.ModeHitCount,
		CoverageMapLen:     cover.DefaultMapLength,
		CmplogHeaders:      0, // 0 => package defaults applied lazily
		CmplogSlots:        0,
		ExecutionTraceSave: trace.SaveNone,
		SnapshotBackend:    snapshot.BackendMicroCheckpoint,
		TimeoutSeconds:     0,
		ConfiguredExceptions:  map[int64]bool{},
		ConfiguredBreakpoints: map[int64]bool{},
		CorpusDirectory:       "%simics%/corpus",
		SolutionsDirectory:    "%simics%/solutions",
	}
}

// Builder incrementally constructs a Configuration. Harness setters are
// thin façades calling exactly one Builder method each.
type Builder struct {
	cfg Configuration
	err error
}

func NewBuilder() *Builder {
	b := &Builder{cfg: Default()}
	return b
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) SetStartOnHarness(v bool) *Builder { b.cfg.StartOnHarness = v; return b }
func (b *Builder) SetStopOnHarness(v bool) *Builder  { b.cfg.StopOnHarness = v; return b }

func (b *Builder) SetMagicStart(n int64) *Builder { b.cfg.MagicStartIndex = n; return b }
func (b *Builder) AddMagicStop(n int64) *Builder {
	if b.cfg.MagicStopIndices == nil {
		b.cfg.MagicStopIndices = map[int64]bool{}
	}
	b.cfg.MagicStopIndices[n] = true
	return b
}
func (b *Builder) AddMagicAssert(n int64) *Builder {
	if b.cfg.MagicAssertIndices == nil {
		b.cfg.MagicAssertIndices = map[int64]bool{}
	}
	b.cfg.MagicAssertIndices[n] = true
	return b
}

func (b *Builder) SetArchitectureHint(h arch.Hint) *Builder { b.cfg.ArchitectureHint = h; return b }

func (b *Builder) SetTracingMode(mode string) *Builder {
	switch mode {
	case "hit-count":
		b.cfg.TracingMode = cover.ModeHitCount
	case "once":
		b.cfg.TracingMode = cover.ModeOnce
	default:
		return b.fail(serr.New(serr.ConfigError, "unknown tracing mode: %q", mode))
	}
	return b
}

func (b *Builder) SetCmplogEnabled(v bool) *Builder { b.cfg.CmplogEnabled = v; return b }

func (b *Builder) SetExecutionTraceSave(mode string) *Builder {
	m, err := trace.ParseSaveMode(mode)
	if err != nil {
		return b.fail(serr.Wrap(serr.ConfigError, err, "parsing execution trace save mode"))
	}
	b.cfg.ExecutionTraceSave = m
	return b
}

func (b *Builder) SetSnapshotBackend(backend string) *Builder {
	v, err := snapshot.ParseBackend(backend)
	if err != nil {
		return b.fail(err)
	}
	b.cfg.SnapshotBackend = v
	return b
}

// SetTimeout sets the per-iteration timeout in seconds. Zero is rejected
// per spec.md §8's "Timeout of 0 seconds is rejected with ConfigError."
func (b *Builder) SetTimeout(seconds float64) *Builder {
	if seconds <= 0 {
		return b.fail(serr.New(serr.ConfigError, "timeout must be greater than zero seconds, got %v", seconds))
	}
	b.cfg.TimeoutSeconds = seconds
	return b
}

func (b *Builder) AddExceptionSolution(e int64) *Builder {
	if b.cfg.ConfiguredExceptions == nil {
		b.cfg.ConfiguredExceptions = map[int64]bool{}
	}
	b.cfg.ConfiguredExceptions[e] = true
	return b
}

func (b *Builder) RemoveExceptionSolution(e int64) *Builder {
	delete(b.cfg.ConfiguredExceptions, e)
	return b
}

func (b *Builder) SetAllExceptionsAreSolutions(v bool) *Builder {
	b.cfg.AllExceptionsAreSolutions = v
	return b
}

func (b *Builder) AddBreakpointSolution(bp int64) *Builder {
	if b.cfg.ConfiguredBreakpoints == nil {
		b.cfg.ConfiguredBreakpoints = map[int64]bool{}
	}
	b.cfg.ConfiguredBreakpoints[bp] = true
	return b
}

func (b *Builder) SetAllBreakpointsAreSolutions(v bool) *Builder {
	b.cfg.AllBreakpointsAreSolutions = v
	return b
}

func (b *Builder) SetCorpusDirectory(p string) *Builder    { b.cfg.CorpusDirectory = p; return b }
func (b *Builder) SetSolutionsDirectory(p string) *Builder { b.cfg.SolutionsDirectory = p; return b }
func (b *Builder) SetGenerateRandomCorpus(v bool) *Builder { b.cfg.GenerateRandomCorpus = v; return b }

func (b *Builder) SetIterationLimit(n uint64) *Builder      { b.cfg.IterationLimit = n; return b }
func (b *Builder) SetQuitOnIterationLimit(v bool) *Builder { b.cfg.QuitOnIterationLimit = v; return b }

// Build finalizes the Configuration, returning the first error recorded
// by any setter, if any.
func (b *Builder) Build() (Configuration, error) {
	if b.err != nil {
		return Configuration{}, b.err
	}
	return b.cfg, nil
}
