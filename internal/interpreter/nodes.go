package interpreter

import (
	"errors"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

var errMissingNodeID = errors.New("payload missing node id")

func applyNodeCreate(c opContext) error {
	if c.action == actionUndo {
		return deleteNode(c, c.payload.str("nodeId", "id"))
	}

	id := c.payload.str("nodeId", "id")
	node := c.payload.obj("node")
	var n graphmodel.Node
	if node != nil {
		n = nodeFromPayload(payload(node))
	} else {
		n = nodeFromPayload(c.payload)
	}
	if id != "" {
		n.ID = id
	}
	if n.ID == "" {
		return errMissingNodeID
	}

	layer, save := c.layer()
	layer.Nodes[n.ID] = n
	found := false
	for _, existing := range layer.NodeIDs {
		if existing == n.ID {
			found = true
			break
		}
	}
	if !found {
		layer.NodeIDs = append(layer.NodeIDs, n.ID)
	}
	save(layer)
	return nil
}

func applyNodeDelete(c opContext) error {
	id := c.payload.str("nodeId", "id")
	if id == "" {
		return errMissingNodeID
	}

	if c.action == actionUndo {
		node := c.payload.obj("node", "previousNode")
		n := nodeFromPayload(payload(node))
		if n.ID == "" {
			n.ID = id
		}
		layer, save := c.layer()
		layer.Nodes[n.ID] = n
		layer.NodeIDs = append(layer.NodeIDs, n.ID)
		layer.FixNodeIDs()
		save(layer)
		return nil
	}

	return deleteNode(c, id)
}

// deleteNode removes id from the target layer, compacts NodeIDs, and
// purges dangling edges. The canonical endpoint field names
// are startNodeId/endNodeId; legacy aliases (source/target) are tolerated
// by edgeFromPayload/Layer.PurgeDanglingEdges operating on the decoded
// Edge value, not just the canonical field names on the wire payload.
func deleteNode(c opContext, id string) error {
	if id == "" {
		return errMissingNodeID
	}

	layer, save := c.layer()
	delete(layer.Nodes, id)

	filtered := layer.NodeIDs[:0:0]
	for _, nid := range layer.NodeIDs {
		if nid != id {
			filtered = append(filtered, nid)
		}
	}
	layer.NodeIDs = filtered
	layer.PurgeDanglingEdges()
	save(layer)
	return nil
}

func applyNodeUpdate(c opContext) error {
	id := c.payload.str("nodeId", "id")
	if id == "" {
		return errMissingNodeID
	}

	var data map[string]any
	var merge bool
	if c.action == actionUndo {
		if prev := c.payload.obj("previousData", "oldData"); prev != nil {
			data = prev
		} else {
			data = c.payload.obj("data")
		}
	} else if nd := c.payload.obj("newData"); nd != nil {
		data, merge = nd, true
	} else {
		data = c.payload.obj("data")
	}

	layer, save := c.layer()
	n, ok := layer.Nodes[id]
	if !ok {
		return nil
	}
	if merge {
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		for k, v := range data {
			n.Data[k] = v
		}
	} else if data != nil {
		n.Data = data
	}
	layer.Nodes[id] = n
	save(layer)
	return nil
}

func applyNodeMove(c opContext) error {
	id := c.payload.str("nodeId", "id")
	if id == "" {
		return errMissingNodeID
	}

	var pt graphmodel.Point
	if c.action == actionUndo {
		pt = c.payload.point("previousCoordinates", "previousPosition", "from")
	} else {
		pt = c.payload.point("coordinates", "position", "to")
	}

	layer, save := c.layer()
	n, ok := layer.Nodes[id]
	if !ok {
		return nil
	}
	n.Coordinates = pt
	layer.Nodes[id] = n
	save(layer)
	return nil
}
