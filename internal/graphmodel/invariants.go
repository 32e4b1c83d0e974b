package graphmodel

import "sort"

// FixNodeIDs repairs l.NodeIDs in place: it becomes the
// key-set of l.Nodes, preserving the relative order of ids already
// present and appending any missing ones deterministically.
func (l *Layer) FixNodeIDs() {
	seen := make(map[string]bool, len(l.NodeIDs))
	fixed := make([]string, 0, len(l.Nodes))

	for _, id := range l.NodeIDs {
		if seen[id] {
			continue
		}
		if _, ok := l.Nodes[id]; !ok {
			continue
		}
		seen[id] = true
		fixed = append(fixed, id)
	}

	var missing []string
	for id := range l.Nodes {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	fixed = append(fixed, missing...)

	l.NodeIDs = fixed
}

// CheckNodeIDs reports whether NodeIDs is a duplicate-free
// permutation of keys(Nodes).
func (l Layer) CheckNodeIDs() bool {
	if len(l.NodeIDs) != len(l.Nodes) {
		return false
	}
	seen := make(map[string]bool, len(l.NodeIDs))
	for _, id := range l.NodeIDs {
		if seen[id] {
			return false
		}
		seen[id] = true
		if _, ok := l.Nodes[id]; !ok {
			return false
		}
	}
	return true
}

// PurgeDanglingEdges removes every edge in l whose StartNodeID or
// EndNodeID is not in l.Nodes.
func (l *Layer) PurgeDanglingEdges() {
	for id, e := range l.Edges {
		if _, ok := l.Nodes[e.StartNodeID]; !ok {
			delete(l.Edges, id)
			continue
		}
		if _, ok := l.Nodes[e.EndNodeID]; !ok {
			delete(l.Edges, id)
		}
	}
}

// EnsureRoot ensures t has a root layer, creating an empty one if absent.
func (t *Timeline) EnsureRoot() {
	if t.Layers == nil {
		t.Layers = map[string]Layer{}
	}
	if _, ok := t.Layers[RootLayerID]; !ok {
		t.Layers[RootLayerID] = NewLayer(RootLayerID, "Root")
	}
}

// EnsureTimeline returns the timeline with id, creating (and scaffolding
// with a root layer) it in s if absent.
func (s *Snapshot) EnsureTimeline(timelineID string) Timeline {
	if s.Timelines == nil {
		s.Timelines = map[string]Timeline{}
	}
	tl, ok := s.Timelines[timelineID]
	if !ok {
		tl = NewTimeline()
	} else {
		tl.EnsureRoot()
	}
	s.Timelines[timelineID] = tl
	return tl
}

// EnsureLayer returns the layer with id within timelineID, creating it
// (and the timeline, if needed) as an empty well-formed Layer.
func (s *Snapshot) EnsureLayer(timelineID, layerID string) Layer {
	tl := s.EnsureTimeline(timelineID)
	layer, ok := tl.Layers[layerID]
	if !ok {
		layer = NewLayer(layerID, layerID)
	}
	if layer.Nodes == nil {
		layer.Nodes = map[string]Node{}
	}
	if layer.Edges == nil {
		layer.Edges = map[string]Edge{}
	}
	if layer.NodeIDs == nil {
		layer.NodeIDs = []string{}
	}
	tl.Layers[layerID] = layer
	s.Timelines[timelineID] = tl
	return layer
}

// PutLayer writes layer back into timelineID's layer map.
func (s *Snapshot) PutLayer(timelineID string, layer Layer) {
	tl := s.Timelines[timelineID]
	if tl.Layers == nil {
		tl.Layers = map[string]Layer{}
	}
	tl.Layers[layer.ID] = layer
	s.Timelines[timelineID] = tl
}
