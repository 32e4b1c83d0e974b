package interpreter

import (
	"testing"
	"time"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

func TestApplyDoesNotMutateTheInputSnapshot(t *testing.T) {
	before := graphmodel.NewSnapshot("p1")

	ops := []graphmodel.Operation{
		{
			Type:       "CREATE_NODE",
			TimelineID: "t1",
			LayerID:    graphmodel.RootLayerID,
			Payload:    map[string]any{"nodeId": "n1", "type": "narrative"},
		},
	}

	after := Apply(before, ops, time.Unix(0, 0))

	if _, ok := before.Timelines["t1"]; ok {
		t.Fatal("Apply mutated the snapshot passed in")
	}
	layer := after.Timelines["t1"].Layers[graphmodel.RootLayerID]
	if _, ok := layer.Nodes["n1"]; !ok {
		t.Fatal("expected node n1 to exist in the returned snapshot")
	}
}

func TestApplyIsDeterministicForTheSameInputs(t *testing.T) {
	base := graphmodel.NewSnapshot("p1")
	ops := []graphmodel.Operation{
		{ID: "op1", Type: "CREATE_NODE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"nodeId": "n1"}},
		{ID: "op2", Type: "CREATE_EDGE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"id": "e1", "startNodeId": "n1", "endNodeId": "n1"}},
	}

	now := time.Unix(1000, 0)
	a := Apply(base, ops, now)
	b := Apply(base, ops, now)

	layerA := a.Timelines["t1"].Layers[graphmodel.RootLayerID]
	layerB := b.Timelines["t1"].Layers[graphmodel.RootLayerID]
	if len(layerA.Nodes) != len(layerB.Nodes) || len(layerA.Edges) != len(layerB.Edges) {
		t.Fatalf("Apply produced different results for identical inputs: %+v vs %+v", layerA, layerB)
	}
	if a.LastModified != b.LastModified {
		t.Fatal("Apply's LastModified stamp should be identical for identical `now` inputs")
	}
}

func TestApplySkipsUnknownOperationTypeWithoutFailingTheBatch(t *testing.T) {
	base := graphmodel.NewSnapshot("p1")
	ops := []graphmodel.Operation{
		{ID: "bad", Type: "NOT_A_REAL_TYPE", TimelineID: "t1", LayerID: graphmodel.RootLayerID},
		{ID: "good", Type: "CREATE_NODE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"nodeId": "n1"}},
	}

	out := Apply(base, ops, time.Now())

	layer := out.Timelines["t1"].Layers[graphmodel.RootLayerID]
	if _, ok := layer.Nodes["n1"]; !ok {
		t.Fatal("a bad op in the batch should not prevent later valid ops from applying")
	}
}

func TestApplyPurgesDanglingEdgesOnNodeDelete(t *testing.T) {
	base := graphmodel.NewSnapshot("p1")
	createOps := []graphmodel.Operation{
		{Type: "CREATE_NODE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"nodeId": "n1"}},
		{Type: "CREATE_NODE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"nodeId": "n2"}},
		{Type: "CREATE_EDGE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"id": "e1", "startNodeId": "n1", "endNodeId": "n2"}},
	}
	withEdge := Apply(base, createOps, time.Now())

	deleteOps := []graphmodel.Operation{
		{Type: "DELETE_NODE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"nodeId": "n1"}},
	}
	after := Apply(withEdge, deleteOps, time.Now())

	layer := after.Timelines["t1"].Layers[graphmodel.RootLayerID]
	if _, ok := layer.Nodes["n1"]; ok {
		t.Fatal("n1 should have been deleted")
	}
	if len(layer.Edges) != 0 {
		t.Fatalf("expected the dangling edge to be purged, got %+v", layer.Edges)
	}
	if !layer.CheckNodeIDs() {
		t.Fatalf("NodeIDs out of sync with Nodes after delete: %v", layer.NodeIDs)
	}
}

func TestApplyUndoNodeDeleteRestoresTheNode(t *testing.T) {
	base := graphmodel.NewSnapshot("p1")
	createOps := []graphmodel.Operation{
		{Type: "CREATE_NODE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"nodeId": "n1", "type": "note"}},
	}
	withNode := Apply(base, createOps, time.Now())

	undoOps := []graphmodel.Operation{
		{Type: "node.deleted.undo", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{
			"nodeId": "n1",
			"node":   map[string]any{"id": "n1", "type": "note"},
		}},
	}
	restored := Apply(withNode, undoOps, time.Now())

	layer := restored.Timelines["t1"].Layers[graphmodel.RootLayerID]
	if _, ok := layer.Nodes["n1"]; !ok {
		t.Fatal("undo of node delete should have restored n1")
	}
	if !layer.CheckNodeIDs() {
		t.Fatalf("NodeIDs out of sync with Nodes after undo: %v", layer.NodeIDs)
	}
}

func TestApplyCutThenPasteRestoresTheDuplicatedState(t *testing.T) {
	base := graphmodel.NewSnapshot("p1")

	dup := []graphmodel.Operation{
		{Type: "nodes.duplicated", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{
			"nodes":  []any{map[string]any{"id": "n1", "type": "narrative", "coordinates": map[string]any{"x": 0.0, "y": 0.0}, "data": map[string]any{}}},
			"edges":  []any{},
			"layers": []any{},
		}},
	}
	duplicated := Apply(base, dup, time.Unix(1, 0))

	cut := []graphmodel.Operation{
		{Type: "nodes.cut", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{
			"nodes":   []any{map[string]any{"id": "n1"}},
			"edges":   []any{},
			"layers":  []any{},
			"nodeIds": []any{"n1"},
		}},
	}
	afterCut := Apply(duplicated, cut, time.Unix(2, 0))
	if len(afterCut.Timelines["t1"].Layers[graphmodel.RootLayerID].Nodes) != 0 {
		t.Fatal("cut should have removed n1")
	}

	paste := []graphmodel.Operation{
		{Type: "nodes.pasted.cut", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{
			"nodes":  []any{map[string]any{"id": "n1", "type": "narrative", "coordinates": map[string]any{"x": 0.0, "y": 0.0}, "data": map[string]any{}}},
			"edges":  []any{},
			"layers": []any{},
		}},
	}
	pasted := Apply(afterCut, paste, time.Unix(3, 0))

	want := duplicated.Timelines["t1"].Layers[graphmodel.RootLayerID]
	got := pasted.Timelines["t1"].Layers[graphmodel.RootLayerID]
	if len(got.Nodes) != len(want.Nodes) || !got.CheckNodeIDs() {
		t.Fatalf("cut+paste should round-trip back to the duplicated state, got %+v", got)
	}
	if _, ok := got.Nodes["n1"]; !ok {
		t.Fatal("paste should have restored n1")
	}
}

func TestApplyOperationsToggledUndoRestoresPerOpEnabled(t *testing.T) {
	base := graphmodel.NewSnapshot("p1")
	setup := []graphmodel.Operation{
		{Type: "CREATE_NODE", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{"nodeId": "n1"}},
		{Type: "operation.created", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{
			"nodeId": "n1", "id": "inner1", "order": 1.0, "enabled": true,
		}},
	}
	withOp := Apply(base, setup, time.Unix(1, 0))

	toggle := []graphmodel.Operation{
		{Type: "operations.toggled", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{
			"operations": []any{map[string]any{"nodeId": "n1", "id": "inner1", "enabled": false, "previousEnabled": true}},
		}},
	}
	toggled := Apply(withOp, toggle, time.Unix(2, 0))
	if toggled.Timelines["t1"].Layers[graphmodel.RootLayerID].Nodes["n1"].Operations[0].Enabled {
		t.Fatal("toggle should have disabled inner1")
	}

	undo := []graphmodel.Operation{
		{Type: "operations.toggled.undo", TimelineID: "t1", LayerID: graphmodel.RootLayerID, Payload: map[string]any{
			"operations": []any{map[string]any{"nodeId": "n1", "id": "inner1", "enabled": false, "previousEnabled": true}},
		}},
	}
	restored := Apply(toggled, undo, time.Unix(3, 0))
	if !restored.Timelines["t1"].Layers[graphmodel.RootLayerID].Nodes["n1"].Operations[0].Enabled {
		t.Fatal("undo should have restored inner1's previous enabled state")
	}
}

func TestAliasTableResolvesLegacyAndCanonicalSpellings(t *testing.T) {
	cases := []struct {
		opType string
		family family
		action action
	}{
		{"CREATE_NODE", familyNodeCreate, actionForward},
		{"node.added", familyNodeCreate, actionForward},
		{"node.added.undo", familyNodeCreate, actionUndo},
		{"node.added.redo", familyNodeCreate, actionForward},
		{"DELETE_EDGE", familyEdgeDelete, actionForward},
		{"edge.conditions_updated", familyEdgeUpdate, actionForward},
		{"layer.moved.undo", familyLayerMove, actionUndo},
		{"timeline.duplicated", familyTimelineDuplicated, actionForward},
	}

	for _, tc := range cases {
		got, ok := resolve(tc.opType)
		if !ok {
			t.Errorf("resolve(%q): expected an alias table entry", tc.opType)
			continue
		}
		if got.family != tc.family || got.action != tc.action {
			t.Errorf("resolve(%q) = %+v, want {%v %v}", tc.opType, got, tc.family, tc.action)
		}
	}
}

func TestResolveReportsMissForUnknownType(t *testing.T) {
	if _, ok := resolve("totally.unknown"); ok {
		t.Fatal("expected resolve to report a miss for an unregistered op type")
	}
}
