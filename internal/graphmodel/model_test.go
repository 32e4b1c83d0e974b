package graphmodel

import "testing"

func TestNodeCloneIsIndependentOfOriginal(t *testing.T) {
	n := Node{
		ID:            "n1",
		Data:          map[string]any{"label": "a"},
		Operations:    []InnerOperation{{ID: "op1", Order: 0}},
		StartingNodes: []string{"x"},
		EndingNodes:   []string{"y"},
	}

	clone := n.Clone()
	clone.Data["label"] = "b"
	clone.Operations[0].Order = 9
	clone.StartingNodes[0] = "mutated"
	clone.EndingNodes[0] = "mutated"

	if n.Data["label"] != "a" {
		t.Fatal("Node.Clone shares the Data map with the original")
	}
	if n.Operations[0].Order != 0 {
		t.Fatal("Node.Clone shares the Operations slice with the original")
	}
	if n.StartingNodes[0] != "x" || n.EndingNodes[0] != "y" {
		t.Fatal("Node.Clone shares StartingNodes/EndingNodes with the original")
	}
}

func TestLayerCloneIsIndependentOfOriginal(t *testing.T) {
	l := NewLayer("root", "Root")
	l.Nodes["n1"] = Node{ID: "n1", Data: map[string]any{"k": "v"}}
	l.Edges["e1"] = Edge{ID: "e1", StartNodeID: "n1", EndNodeID: "n1"}
	l.NodeIDs = []string{"n1"}

	clone := l.Clone()
	clone.Nodes["n1"] = Node{ID: "mutated"}
	delete(clone.Edges, "e1")
	clone.NodeIDs[0] = "mutated"

	if l.Nodes["n1"].ID != "n1" {
		t.Fatal("Layer.Clone shares the Nodes map with the original")
	}
	if _, ok := l.Edges["e1"]; !ok {
		t.Fatal("Layer.Clone shares the Edges map with the original")
	}
	if l.NodeIDs[0] != "n1" {
		t.Fatal("Layer.Clone shares the NodeIDs slice with the original")
	}
}

func TestSnapshotCloneIsIndependentOfOriginal(t *testing.T) {
	s := NewSnapshot("p1")
	tl := s.EnsureTimeline("t1")
	tl.Layers[RootLayerID].Nodes["n1"] = Node{ID: "n1"}
	s.Timelines["t1"] = tl

	clone := s.Clone()
	clone.Timelines["t1"].Layers[RootLayerID].Nodes["n1"] = Node{ID: "mutated"}
	clone.Timelines["t2"] = NewTimeline()

	if s.Timelines["t1"].Layers[RootLayerID].Nodes["n1"].ID != "n1" {
		t.Fatal("Snapshot.Clone is not a deep copy: mutation through clone leaked into the original")
	}
	if _, ok := s.Timelines["t2"]; ok {
		t.Fatal("Snapshot.Clone shares the Timelines map with the original")
	}
}

func TestNewTimelineHasRootLayer(t *testing.T) {
	tl := NewTimeline()
	if _, ok := tl.Layers[RootLayerID]; !ok {
		t.Fatal("NewTimeline must scaffold a root layer")
	}
	if tl.Variables == nil {
		t.Fatal("NewTimeline must scaffold a non-nil Variables slice")
	}
}
