package store

import (
	"testing"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

func TestMigrateLegacyWrapsLayersOnlyDocument(t *testing.T) {
	raw := map[string]any{
		"layers":    map[string]any{"root": map[string]any{"id": "root"}},
		"variables": []any{map[string]any{"id": "v1"}},
	}

	out := MigrateLegacy(raw)

	timelines, ok := out["timelines"].(map[string]any)
	if !ok {
		t.Fatalf("want a timelines map, got %T", out["timelines"])
	}
	tl, ok := timelines[legacyTimelineID].(map[string]any)
	if !ok {
		t.Fatalf("want the legacy timeline %q, got %v", legacyTimelineID, timelines)
	}
	if _, ok := tl["layers"].(map[string]any); !ok {
		t.Fatal("want the top-level layers moved under the legacy timeline")
	}
	if _, ok := out["layers"]; ok {
		t.Fatal("want the top-level layers key removed after migration")
	}
	if _, ok := out["timelinesMetadata"].([]any); !ok {
		t.Fatal("want timelinesMetadata scaffolded for the legacy timeline")
	}
}

func TestMigrateLegacyLeavesCurrentShapeUntouched(t *testing.T) {
	raw := map[string]any{
		"timelines": map[string]any{"t1": map[string]any{}},
	}

	out := MigrateLegacy(raw)

	timelines := out["timelines"].(map[string]any)
	if _, ok := timelines["t1"]; !ok || len(timelines) != 1 {
		t.Fatalf("a current-shape document must pass through unchanged, got %v", timelines)
	}
}

func TestEnsureScaffoldFillsMissingCollections(t *testing.T) {
	s := graphmodel.Snapshot{
		Timelines: map[string]graphmodel.Timeline{
			"t1": {Layers: map[string]graphmodel.Layer{"l1": {ID: "l1"}}},
		},
	}

	out := EnsureScaffold(s)

	tl := out.Timelines["t1"]
	if _, ok := tl.Layers[graphmodel.RootLayerID]; !ok {
		t.Fatal("EnsureScaffold must create the root layer")
	}
	l := tl.Layers["l1"]
	if l.Nodes == nil || l.Edges == nil || l.NodeIDs == nil {
		t.Fatalf("EnsureScaffold must fill nil collections, got %+v", l)
	}
	if out.TimelinesMetadata == nil {
		t.Fatal("EnsureScaffold must fill nil TimelinesMetadata")
	}
}
