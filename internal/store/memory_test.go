package store

import (
	"context"
	"testing"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

func TestMemoryScaffoldsEmptySnapshotOnFirstRead(t *testing.T) {
	m := NewMemory()

	snap, version, err := m.GetProjectSnapshot(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 0 {
		t.Fatalf("want version 0 on first read, got %d", version)
	}
	if snap.ProjectID != "p1" || snap.Timelines == nil {
		t.Fatalf("want an empty scaffold for p1, got %+v", snap)
	}
}

func TestMemorySaveChangesBumpsVersionAndAppendsOps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	snap := graphmodel.NewSnapshot("p1")
	ops := []graphmodel.Operation{
		{ID: "op1", Type: "CREATE_NODE", TimelineID: "t1", Version: 1},
		{ID: "op2", Type: "CREATE_NODE", TimelineID: "t1", Version: 1},
	}
	if err := m.SaveChangesInTransaction(ctx, "p1", snap, ops, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	version, err := m.GetProjectVersion(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 1 {
		t.Fatalf("want version 1, got %d", version)
	}

	after, err := m.GetOperationsAfterVersion(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("want both ops returned, got %v", after)
	}

	none, err := m.GetOperationsAfterVersion(ctx, "p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("want no ops past the current version, got %v", none)
	}
}

func TestMemoryReturnsAClonedSnapshot(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, _, err := m.GetProjectSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Timelines["t1"] = graphmodel.NewTimeline()

	second, _, err := m.GetProjectSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := second.Timelines["t1"]; ok {
		t.Fatal("mutating a returned snapshot must not leak into the store")
	}
}
