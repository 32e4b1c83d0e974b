package interpreter

import "testing"

func TestPayloadStrFallsThroughKeysInOrder(t *testing.T) {
	p := payload{"nodeId": "from-nodeId"}
	if got := p.str("id", "nodeId"); got != "from-nodeId" {
		t.Fatalf("want fallback to nodeId, got %q", got)
	}
	if got := p.str("missing"); got != "" {
		t.Fatalf("want empty string for a missing key, got %q", got)
	}
}

func TestPayloadPointDecodesXY(t *testing.T) {
	p := payload{"coordinates": map[string]any{"x": 1.5, "y": 2.5}}
	pt := p.point("coordinates")
	if pt.X != 1.5 || pt.Y != 2.5 {
		t.Fatalf("want {1.5 2.5}, got %+v", pt)
	}
}

func TestPayloadPointZeroValueWhenAbsent(t *testing.T) {
	p := payload{}
	pt := p.point("coordinates", "position")
	if pt.X != 0 || pt.Y != 0 {
		t.Fatalf("want zero point, got %+v", pt)
	}
}

func TestEdgeFromPayloadAcceptsLegacyEndpointAliases(t *testing.T) {
	e := edgeFromPayload(payload{"source": "a", "target": "b"})
	if e.StartNodeID != "a" || e.EndNodeID != "b" {
		t.Fatalf("want endpoints decoded from source/target, got %+v", e)
	}
	if e.ID != "a-b" {
		t.Fatalf("want a synthesized id when none is given, got %q", e.ID)
	}
	if e.Type != "link" {
		t.Fatalf("want the default edge type \"link\", got %q", e.Type)
	}
}

func TestNodeFromPayloadScaffoldsNonNilData(t *testing.T) {
	n := nodeFromPayload(payload{"id": "n1"})
	if n.Data == nil {
		t.Fatal("nodeFromPayload must scaffold a non-nil Data map")
	}
}
