package interpreter

import "errors"

var errMissingEdgeID = errors.New("payload missing edge id")

func applyEdgeCreate(c opContext) error {
	if c.action == actionUndo {
		id := c.payload.str("edgeId", "id")
		layer, save := c.layer()
		delete(layer.Edges, id)
		save(layer)
		return nil
	}

	e := edgeFromPayload(c.payload)
	if e.ID == "" {
		return errMissingEdgeID
	}

	layer, save := c.layer()
	layer.Edges[e.ID] = e
	save(layer)
	return nil
}

func applyEdgeDelete(c opContext) error {
	id := c.payload.str("edgeId", "id")
	if id == "" {
		return errMissingEdgeID
	}

	if c.action == actionUndo {
		e := edgeFromPayload(asPayload(c.payload.obj("edge", "previousEdge")))
		if e.ID == "" {
			e.ID = id
		}
		layer, save := c.layer()
		layer.Edges[e.ID] = e
		save(layer)
		return nil
	}

	layer, save := c.layer()
	delete(layer.Edges, id)
	save(layer)
	return nil
}

func applyEdgeUpdate(c opContext) error {
	id := c.payload.str("edgeId", "id")
	if id == "" {
		return errMissingEdgeID
	}

	layer, save := c.layer()
	e, ok := layer.Edges[id]
	if !ok {
		return nil
	}

	fields := c.payload.obj("updates")
	if fields == nil {
		fields = map[string]any(c.payload)
	}
	if c.action == actionUndo {
		if prev := c.payload.obj("previous"); prev != nil {
			fields = prev
		}
	}

	if v, ok := fields["startNodeId"].(string); ok {
		e.StartNodeID = v
	}
	if v, ok := fields["endNodeId"].(string); ok {
		e.EndNodeID = v
	}
	if v, ok := fields["sourceHandle"].(string); ok {
		e.SourceHandle = v
	}
	if v, ok := fields["targetHandle"].(string); ok {
		e.TargetHandle = v
	}
	if v, ok := fields["conditions"].([]any); ok {
		e.Conditions = nil
		for _, c := range v {
			if m, ok := c.(map[string]any); ok {
				e.Conditions = append(e.Conditions, m)
			}
		}
	}

	layer.Edges[id] = e
	save(layer)
	return nil
}
