package store

import (
	"context"
	"sync"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

// projectState is one project's in-memory record.
type projectState struct {
	snapshot graphmodel.Snapshot
	version  int
	ops      []graphmodel.Operation
}

// Memory is an in-process Store, used for single-instance deployments
// without a database and for tests (the Store contract backed by a
// map instead of a relational store).
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*projectState
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{projects: make(map[string]*projectState)}
}

func (m *Memory) getOrCreate(projectID string) *projectState {
	if p, ok := m.projects[projectID]; ok {
		return p
	}
	p := &projectState{snapshot: graphmodel.NewSnapshot(projectID)}
	m.projects[projectID] = p
	return p
}

func (m *Memory) GetProjectSnapshot(_ context.Context, projectID string) (graphmodel.Snapshot, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(projectID)
	return p.snapshot.Clone(), p.version, nil
}

func (m *Memory) GetProjectVersion(_ context.Context, projectID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.projects[projectID]; ok {
		return p.version, nil
	}
	return 0, nil
}

func (m *Memory) GetOperationsAfterVersion(_ context.Context, projectID string, v int) ([]graphmodel.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	out := make([]graphmodel.Operation, 0, len(p.ops))
	for _, op := range p.ops {
		if op.Version > v {
			out = append(out, op)
		}
	}
	return out, nil
}

func (m *Memory) SaveChangesInTransaction(_ context.Context, projectID string, newSnapshot graphmodel.Snapshot, ops []graphmodel.Operation, newVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(projectID)
	p.snapshot = newSnapshot.Clone()
	p.ops = append(p.ops, ops...)
	p.version = newVersion
	return nil
}
