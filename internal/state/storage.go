// Package state implements a single-loop polling state machine: numbered
// states, a sparse transition table keyed by button and timeout events,
// debounced digital inputs, a one-shot timer and entry/exit/do callbacks.
package state

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound indicates that no snapshot is stored for a machine.
var ErrSnapshotNotFound = errors.New("state snapshot not found")

// Storage defines the persistence contract for machine snapshots.
type Storage interface {
	// SaveSnapshot stores the latest snapshot for snap.MachineID.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	// LoadSnapshot returns the latest snapshot for machineID.
	LoadSnapshot(ctx context.Context, machineID string) (*Snapshot, error)
	// ClearSnapshot removes the snapshot for machineID.
	ClearSnapshot(ctx context.Context, machineID string) error
}
