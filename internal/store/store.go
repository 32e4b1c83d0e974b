// Package store loads and persists the authoritative graph snapshot
// and version for a project, and the operation log behind it.
package store

import (
	"context"
	"errors"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

// ErrNotFound names a project record this store has never heard of.
// Neither Memory nor Postgres returns it: both scaffold an empty
// snapshot at version 0 for an unknown project.
var ErrNotFound = errors.New("store: project not found")

// ErrTransient marks a storage error the caller (internal/serializer)
// should retry with backoff: write-conflict and deadlock codes in the
// backing database.
var ErrTransient = errors.New("store: transient conflict")

// Store is the snapshot store contract.
type Store interface {
	// GetProjectSnapshot returns the current snapshot and version for
	// projectID, scaffolding an empty one on first access.
	GetProjectSnapshot(ctx context.Context, projectID string) (graphmodel.Snapshot, int, error)

	// GetProjectVersion returns the current version for projectID.
	GetProjectVersion(ctx context.Context, projectID string) (int, error)

	// GetOperationsAfterVersion returns ops with version > v in
	// ascending version order.
	GetOperationsAfterVersion(ctx context.Context, projectID string, v int) ([]graphmodel.Operation, error)

	// SaveChangesInTransaction atomically persists newSnapshot, appends
	// ops (each already tagged with its version), and bumps the
	// project's version to newVersion.
	SaveChangesInTransaction(ctx context.Context, projectID string, newSnapshot graphmodel.Snapshot, ops []graphmodel.Operation, newVersion int) error
}
