package interpreter

import "github.com/sumatoshi-tech/collabgraph/internal/graphmodel"

// applyCompositeAdd handles nodes.duplicated / nodes.pasted.copy /
// nodes.pasted.cut (forward and redo): the payload carries arrays of
// nodes/edges/layers to insert as one atomic group. Undo of an add is a
// remove of the same ids.
func applyCompositeAdd(c opContext) error {
	if c.action == actionUndo {
		return removeComposite(c)
	}
	return addComposite(c)
}

// applyCompositeRemove handles nodes.cut (forward): remove the named
// nodes/edges/layers. Undo of a cut re-adds them (the payload for cut
// carries the same node/edge/layer literals a duplicate would).
func applyCompositeRemove(c opContext) error {
	if c.action == actionUndo {
		return addComposite(c)
	}
	return removeComposite(c)
}

func addComposite(c opContext) error {
	layer, save := c.layer()

	for _, raw := range c.payload.arr("nodes") {
		n := nodeFromPayload(asPayload(raw))
		if n.ID == "" {
			continue
		}
		layer.Nodes[n.ID] = n
	}
	for _, raw := range c.payload.arr("edges") {
		e := edgeFromPayload(asPayload(raw))
		if e.ID == "" {
			continue
		}
		layer.Edges[e.ID] = e
	}
	layer.FixNodeIDs()
	save(layer)

	for _, raw := range c.payload.arr("layers") {
		lp := asPayload(raw)
		id := lp.str("id", "layerId")
		if id == "" {
			continue
		}
		tl, saveTL := c.timeline()
		if _, exists := tl.Layers[id]; !exists {
			tl.Layers[id] = newLayerFromPayload(lp)
			saveTL(tl)
		}
	}
	return nil
}

func removeComposite(c opContext) error {
	layer, save := c.layer()

	for _, raw := range c.payload.arr("nodes") {
		id := asPayload(raw).str("id", "nodeId")
		if id == "" {
			continue
		}
		delete(layer.Nodes, id)
	}
	for _, id := range toStrings(c.payload.arr("nodeIds")) {
		delete(layer.Nodes, id)
	}
	for _, raw := range c.payload.arr("edges") {
		id := asPayload(raw).str("id", "edgeId")
		if id == "" {
			continue
		}
		delete(layer.Edges, id)
	}
	layer.FixNodeIDs()
	layer.PurgeDanglingEdges()
	save(layer)

	for _, raw := range c.payload.arr("layers") {
		id := asPayload(raw).str("id", "layerId")
		if id == "" {
			continue
		}
		tl, saveTL := c.timeline()
		delete(tl.Layers, id)
		saveTL(tl)
	}
	return nil
}

func newLayerFromPayload(p payload) graphmodel.Layer {
	name := p.str("name")
	id := p.str("id", "layerId")
	return graphmodel.NewLayer(id, name)
}

// applyNodesMoved moves a set of nodes to new coordinates as one atomic
// group (payload.nodes: [{id, coordinates}]); undo restores each node's
// previous coordinates from the same array shape keyed by
// previousCoordinates.
func applyNodesMoved(c opContext) error {
	layer, save := c.layer()
	for _, raw := range c.payload.arr("nodes") {
		np := asPayload(raw)
		id := np.str("id", "nodeId")
		if id == "" {
			continue
		}
		n, ok := layer.Nodes[id]
		if !ok {
			continue
		}
		if c.action == actionUndo {
			n.Coordinates = np.point("previousCoordinates", "previousPosition", "from")
		} else {
			n.Coordinates = np.point("coordinates", "position", "to")
		}
		layer.Nodes[id] = n
	}
	save(layer)
	return nil
}
