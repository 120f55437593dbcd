// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-fuzz/simcore/pkg/serr"
)

func TestBuilderAppliesSetters(t *testing.T) {
	cfg, err := NewBuilder().
		SetStartOnHarness(true).
		SetStopOnHarness(true).
		SetMagicStart(11).
		AddMagicStop(22).
		AddMagicAssert(33).
		SetTimeout(1.5).
		SetIterationLimit(100).
		SetQuitOnIterationLimit(true).
		Build()

	require.NoError(t, err)
	assert.True(t, cfg.StartOnHarness)
	assert.True(t, cfg.StopOnHarness)
	assert.EqualValues(t, 11, cfg.MagicStartIndex)
	assert.True(t, cfg.MagicStopIndices[22])
	assert.True(t, cfg.MagicAssertIndices[33])
	assert.Equal(t, 1.5, cfg.TimeoutSeconds)
	assert.EqualValues(t, 100, cfg.IterationLimit)
	assert.True(t, cfg.QuitOnIterationLimit)
}

func TestSetTimeoutRejectsZero(t *testing.T) {
	_, err := NewBuilder().SetTimeout(0).Build()
	require.Error(t, err)
	assert.True(t, serr.Is(err, serr.ConfigError))
}

func TestSetTimeoutRejectsNegative(t *testing.T) {
	_, err := NewBuilder().SetTimeout(-1).Build()
	require.Error(t, err)
	assert.True(t, serr.Is(err, serr.ConfigError))
}

func TestBuilderKeepsFirstError(t *testing.T) {
	_, err := NewBuilder().
		SetTimeout(0).
		SetTracingMode("not-a-real-mode").
		Build()
	require.Error(t, err)
	assert.True(t, serr.Is(err, serr.ConfigError))
}

func TestSetTracingModeUnknownErrors(t *testing.T) {
	_, err := NewBuilder().SetTracingMode("bogus").Build()
	assert.Error(t, err)
}

func TestDefaultConfigurationIsUsable(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg.MagicStopIndices)
	assert.NotNil(t, cfg.ConfiguredExceptions)
	assert.NotNil(t, cfg.ConfiguredBreakpoints)
}
