package graphmodel

import "testing"

func TestFixNodeIDsDropsDuplicatesAndDanglingEntries(t *testing.T) {
	l := Layer{
		Nodes: map[string]Node{
			"a": {ID: "a"},
			"b": {ID: "b"},
		},
		NodeIDs: []string{"a", "a", "ghost", "b"},
	}

	l.FixNodeIDs()

	if !l.CheckNodeIDs() {
		t.Fatalf("FixNodeIDs left an invalid NodeIDs set: %v", l.NodeIDs)
	}
	if len(l.NodeIDs) != 2 {
		t.Fatalf("want 2 node ids, got %v", l.NodeIDs)
	}
}

func TestFixNodeIDsAppendsMissingNodesSorted(t *testing.T) {
	l := Layer{
		Nodes: map[string]Node{
			"z": {ID: "z"},
			"a": {ID: "a"},
		},
		NodeIDs: nil,
	}

	l.FixNodeIDs()

	want := []string{"a", "z"}
	if len(l.NodeIDs) != 2 || l.NodeIDs[0] != want[0] || l.NodeIDs[1] != want[1] {
		t.Fatalf("want %v, got %v", want, l.NodeIDs)
	}
}

func TestCheckNodeIDsRejectsMismatchedLength(t *testing.T) {
	l := Layer{
		Nodes:   map[string]Node{"a": {ID: "a"}},
		NodeIDs: []string{"a", "b"},
	}
	if l.CheckNodeIDs() {
		t.Fatal("expected CheckNodeIDs to reject a length mismatch")
	}
}

func TestPurgeDanglingEdgesRemovesEdgesMissingEitherEndpoint(t *testing.T) {
	l := NewLayer("root", "Root")
	l.Nodes["a"] = Node{ID: "a"}
	l.Edges["e1"] = Edge{ID: "e1", StartNodeID: "a", EndNodeID: "a"}
	l.Edges["e2"] = Edge{ID: "e2", StartNodeID: "a", EndNodeID: "missing"}
	l.Edges["e3"] = Edge{ID: "e3", StartNodeID: "missing", EndNodeID: "a"}

	l.PurgeDanglingEdges()

	if len(l.Edges) != 1 {
		t.Fatalf("want 1 surviving edge, got %d: %v", len(l.Edges), l.Edges)
	}
	if _, ok := l.Edges["e1"]; !ok {
		t.Fatal("e1 should have survived (both endpoints present)")
	}
}

func TestEnsureRootScaffoldsRootLayerOnce(t *testing.T) {
	tl := Timeline{}
	tl.EnsureRoot()
	if _, ok := tl.Layers[RootLayerID]; !ok {
		t.Fatal("EnsureRoot did not create the root layer")
	}

	tl.Layers[RootLayerID] = Layer{ID: RootLayerID, Name: "custom"}
	tl.EnsureRoot()
	if tl.Layers[RootLayerID].Name != "custom" {
		t.Fatal("EnsureRoot must not overwrite an existing root layer")
	}
}

func TestEnsureTimelineCreatesAndReuses(t *testing.T) {
	s := NewSnapshot("p1")

	tl := s.EnsureTimeline("t1")
	if _, ok := tl.Layers[RootLayerID]; !ok {
		t.Fatal("new timeline must have a root layer")
	}

	s.Timelines["t1"] = Timeline{Layers: map[string]Layer{RootLayerID: NewLayer(RootLayerID, "Root")}, Metadata: map[string]any{"k": "v"}}
	tl2 := s.EnsureTimeline("t1")
	if tl2.Metadata["k"] != "v" {
		t.Fatal("EnsureTimeline must not clobber an existing timeline's data")
	}
}

func TestEnsureLayerScaffoldsEmptyMapsAndSlice(t *testing.T) {
	s := NewSnapshot("p1")

	layer := s.EnsureLayer("t1", "l1")
	if layer.Nodes == nil || layer.Edges == nil || layer.NodeIDs == nil {
		t.Fatal("EnsureLayer must scaffold non-nil Nodes/Edges/NodeIDs")
	}

	got := s.Timelines["t1"].Layers["l1"]
	if got.ID != "l1" {
		t.Fatalf("layer not persisted back into the timeline: %+v", got)
	}
}

func TestPutLayerWritesIntoExistingTimeline(t *testing.T) {
	s := NewSnapshot("p1")
	s.EnsureTimeline("t1")

	layer := NewLayer("l2", "Second")
	layer.Nodes["n1"] = Node{ID: "n1"}
	s.PutLayer("t1", layer)

	got := s.Timelines["t1"].Layers["l2"]
	if len(got.Nodes) != 1 {
		t.Fatalf("PutLayer did not persist the layer's nodes: %+v", got)
	}
}
