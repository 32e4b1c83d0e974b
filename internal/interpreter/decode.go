package interpreter

import "github.com/sumatoshi-tech/collabgraph/internal/graphmodel"

// payload wraps an operation's opaque payload map with lenient field
// probing: the wire format historically carries several shapes for the
// same logical field (e.g. payload.node.id vs payload.nodeId), per
// historical client revisions emitted.
type payload map[string]any

func (p payload) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func (p payload) obj(keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if m, ok := v.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func (p payload) arr(keys ...string) []any {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if a, ok := v.([]any); ok {
				return a
			}
		}
	}
	return nil
}

func (p payload) boolean(def bool, keys ...string) bool {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return def
}

func (p payload) number(keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			switch n := v.(type) {
			case float64:
				return n, true
			case int:
				return float64(n), true
			}
		}
	}
	return 0, false
}

// point decodes a {x,y} object under any of keys into a graphmodel.Point.
func (p payload) point(keys ...string) graphmodel.Point {
	o := p.obj(keys...)
	if o == nil {
		return graphmodel.Point{}
	}
	pt := graphmodel.Point{}
	if x, ok := o["x"].(float64); ok {
		pt.X = x
	}
	if y, ok := o["y"].(float64); ok {
		pt.Y = y
	}
	return pt
}

// asPayload coerces a decoded JSON value (map[string]any) into a payload,
// used when walking arrays of arbitrary sub-objects (composite ops).
func asPayload(v any) payload {
	if m, ok := v.(map[string]any); ok {
		return payload(m)
	}
	return payload{}
}

// nodeFromPayload decodes a Node from a payload sub-object, used by
// composite ops that carry full node literals to insert.
func nodeFromPayload(p payload) graphmodel.Node {
	n := graphmodel.Node{
		ID:          p.str("id"),
		Type:        graphmodel.NodeType(p.str("type")),
		Coordinates: p.point("coordinates", "position"),
		Data:        p.obj("data"),
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	return n
}

// edgeFromPayload decodes an Edge from a payload sub-object.
func edgeFromPayload(p payload) graphmodel.Edge {
	e := graphmodel.Edge{
		ID:           p.str("id"),
		Type:         orDefault(p.str("type"), "link"),
		StartNodeID:  p.str("startNodeId", "source", "start"),
		EndNodeID:    p.str("endNodeId", "target", "end"),
		SourceHandle: p.str("sourceHandle"),
		TargetHandle: p.str("targetHandle"),
	}
	if e.ID == "" && e.StartNodeID != "" && e.EndNodeID != "" {
		e.ID = e.StartNodeID + "-" + e.EndNodeID
	}
	for _, c := range p.arr("conditions") {
		if m, ok := c.(map[string]any); ok {
			e.Conditions = append(e.Conditions, m)
		}
	}
	return e
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
