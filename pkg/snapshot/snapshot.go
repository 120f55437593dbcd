// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package snapshot implements the Snapshot Manager (component D of
// spec.md §4.D): saving exactly one origin snapshot at the first start
// rendezvous and restoring it on every iteration boundary, bridging the
// simulator's two snapshot back-ends.
package snapshot

import (
	"github.com/sim-fuzz/simcore/pkg/log"
	"github.com/sim-fuzz/simcore/pkg/serr"
	"github.com/sim-fuzz/simcore/pkg/simapi"
)

// Backend selects which underlying snapshot mechanism to use, the
// snapshot_backend enumeration of spec.md §9.
type Backend int

const (
	BackendNative Backend = iota
	BackendMicroCheckpoint
)

func ParseBackend(s string) (Backend, error) {
	switch s {
	case "native":
		return BackendNative, nil
	case "micro-checkpoint":
		return BackendMicroCheckpoint, nil
	default:
		return BackendNative, serr.New(serr.ConfigError, "unknown snapshot backend: %q", s)
	}
}

// SnapshotName is the fixed name used for the one origin snapshot across
// the campaign.
const SnapshotName = "simcore-origin-snapshot"

// Manager owns the origin-snapshot lifecycle: Save is idempotent, Restore
// requires a prior successful Save, matching spec.md invariant 1 ("At
// most one origin snapshot exists; have_snapshot ⇔ snapshot_name.is_some()").
type Manager struct {
	sim     simapi.Simulator
	backend Backend

	haveSnapshot         bool
	microCheckpointIndex int
}

func NewManager(sim simapi.Simulator, backend Backend) *Manager {
	return &Manager{sim: sim, backend: backend}
}

// HaveSnapshot reports whether the origin snapshot has been saved.
func (m *Manager) HaveSnapshot() bool { return m.haveSnapshot }

// SaveInitial saves the origin snapshot if it has not already been saved.
// A second call is a documented no-op (spec.md §8, "save_initial();
// save_initial() ≡ save_initial()").
func (m *Manager) SaveInitial() error {
	if m.haveSnapshot {
		return nil
	}
	switch m.backend {
	case BackendNative:
		if err := m.sim.SaveSnapshot(SnapshotName); err != nil {
			return serr.Wrap(serr.SnapshotError, err, "saving native snapshot %s", SnapshotName)
		}
	case BackendMicroCheckpoint:
		flags := simapi.MicroCheckpointUser | simapi.MicroCheckpointPersistent
		if err := m.sim.SaveMicroCheckpoint(SnapshotName, flags); err != nil {
			return serr.Wrap(serr.SnapshotError, err, "saving micro-checkpoint %s", SnapshotName)
		}
		checkpoints, err := m.sim.ListMicroCheckpoints()
		if err != nil {
			return serr.Wrap(serr.SnapshotError, err, "listing micro-checkpoints after save")
		}
		idx, found := findCheckpoint(checkpoints, SnapshotName)
		if !found {
			return serr.New(serr.SnapshotError, "no micro-checkpoint with just-registered name %s found", SnapshotName)
		}
		m.microCheckpointIndex = idx
	}
	m.haveSnapshot = true
	log.Logf(2, "saved origin snapshot via %v backend", m.backend)
	return nil
}

func findCheckpoint(checkpoints []simapi.MicroCheckpointInfo, name string) (int, bool) {
	for _, c := range checkpoints {
		if c.Name == name {
			return c.Index, true
		}
	}
	return 0, false
}

// RestoreInitial restores the origin snapshot. Requires HaveSnapshot() to
// be true; calling it before a save is an InternalInvariantViolation
// since the driver should never reach this state (spec.md §4.E: a stop
// before any start rendezvous resumes without restoring, it never calls
// RestoreInitial).
func (m *Manager) RestoreInitial() error {
	if !m.haveSnapshot {
		return serr.New(serr.InternalInvariantViolation, "RestoreInitial called with no snapshot saved")
	}
	switch m.backend {
	case BackendNative:
		if err := m.sim.RestoreSnapshot(SnapshotName); err != nil {
			return serr.Wrap(serr.SnapshotError, err, "restoring native snapshot %s", SnapshotName)
		}
	case BackendMicroCheckpoint:
		if err := m.sim.RestoreMicroCheckpoint(m.microCheckpointIndex); err != nil {
			return serr.Wrap(serr.SnapshotError, err, "restoring micro-checkpoint index %d", m.microCheckpointIndex)
		}
		if err := m.sim.DiscardFuture(); err != nil {
			return serr.Wrap(serr.SnapshotError, err, "discarding future after micro-checkpoint restore")
		}
	}
	return nil
}
