package interpreter

import (
	"sort"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

func innerOpFromPayload(p payload) graphmodel.InnerOperation {
	order := 0
	if n, ok := p.number("order"); ok {
		order = int(n)
	}
	return graphmodel.InnerOperation{
		ID:      p.str("id", "operationId"),
		Order:   order,
		Enabled: p.boolean(true, "enabled"),
		Data:    p.obj("data"),
	}
}

func applyInnerOperationCreated(c opContext) error {
	nodeID := c.payload.str("nodeId")
	if nodeID == "" {
		return errMissingNodeID
	}

	if c.action == actionUndo {
		return removeInnerOp(c, nodeID, c.payload.str("id", "operationId"))
	}

	op := innerOpFromPayload(asPayload(c.payload.obj("operation")))
	if op.ID == "" {
		op = innerOpFromPayload(c.payload)
	}
	if op.ID == "" {
		return errMissingNodeID
	}

	layer, save := c.layer()
	n, ok := layer.Nodes[nodeID]
	if !ok {
		return nil
	}
	replaced := false
	for i, existing := range n.Operations {
		if existing.ID == op.ID {
			n.Operations[i] = op
			replaced = true
			break
		}
	}
	if !replaced {
		n.Operations = append(n.Operations, op)
	}
	sortInnerOps(n.Operations)
	layer.Nodes[nodeID] = n
	save(layer)
	return nil
}

func removeInnerOp(c opContext, nodeID, opID string) error {
	if nodeID == "" || opID == "" {
		return errMissingNodeID
	}
	layer, save := c.layer()
	n, ok := layer.Nodes[nodeID]
	if !ok {
		return nil
	}
	filtered := n.Operations[:0:0]
	for _, existing := range n.Operations {
		if existing.ID != opID {
			filtered = append(filtered, existing)
		}
	}
	n.Operations = filtered
	layer.Nodes[nodeID] = n
	save(layer)
	return nil
}

func applyInnerOperationUpdated(c opContext) error {
	nodeID := c.payload.str("nodeId")
	opID := c.payload.str("id", "operationId")
	if nodeID == "" || opID == "" {
		return errMissingNodeID
	}

	var patch map[string]any
	if c.action == actionUndo {
		patch = c.payload.obj("previous")
	} else if nd := c.payload.obj("newData", "data"); nd != nil {
		patch = map[string]any{"data": nd}
	} else {
		patch = map[string]any(c.payload)
	}

	layer, save := c.layer()
	n, ok := layer.Nodes[nodeID]
	if !ok {
		return nil
	}
	for i, op := range n.Operations {
		if op.ID != opID {
			continue
		}
		if d, ok := patch["data"].(map[string]any); ok {
			op.Data = d
		}
		if o, ok := patch["order"].(float64); ok {
			op.Order = int(o)
		}
		if e, ok := patch["enabled"].(bool); ok {
			op.Enabled = e
		}
		n.Operations[i] = op
		break
	}
	sortInnerOps(n.Operations)
	layer.Nodes[nodeID] = n
	save(layer)
	return nil
}

func applyInnerOperationDeleted(c opContext) error {
	nodeID := c.payload.str("nodeId")
	opID := c.payload.str("id", "operationId")

	if c.action == actionUndo {
		op := innerOpFromPayload(asPayload(c.payload.obj("operation", "previousOperation")))
		if op.ID == "" {
			op.ID = opID
		}
		layer, save := c.layer()
		n, ok := layer.Nodes[nodeID]
		if !ok {
			return nil
		}
		n.Operations = append(n.Operations, op)
		sortInnerOps(n.Operations)
		layer.Nodes[nodeID] = n
		save(layer)
		return nil
	}

	return removeInnerOp(c, nodeID, opID)
}

// applyOperationsToggled flips enabled on a set of per-node operations as
// one atomic group; undo restores each op's previous enabled flag, both
// carried in payload.operations: [{nodeId, id, enabled, previousEnabled}].
func applyOperationsToggled(c opContext) error {
	layer, save := c.layer()
	for _, raw := range c.payload.arr("operations") {
		p := asPayload(raw)
		nodeID := p.str("nodeId")
		opID := p.str("id", "operationId")
		if nodeID == "" || opID == "" {
			continue
		}
		n, ok := layer.Nodes[nodeID]
		if !ok {
			continue
		}
		for i, op := range n.Operations {
			if op.ID != opID {
				continue
			}
			if c.action == actionUndo {
				op.Enabled = p.boolean(op.Enabled, "previousEnabled")
			} else {
				op.Enabled = p.boolean(op.Enabled, "enabled")
			}
			n.Operations[i] = op
			break
		}
		layer.Nodes[nodeID] = n
	}
	save(layer)
	return nil
}

func sortInnerOps(ops []graphmodel.InnerOperation) {
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Order < ops[j].Order })
}
