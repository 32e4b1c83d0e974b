package store

import "github.com/sumatoshi-tech/collabgraph/internal/graphmodel"

// legacyTimelineID is the synthetic timeline id a pre-timelines
// snapshot is wrapped into.
const legacyTimelineID = "base-timeline"

// MigrateLegacy detects the pre-timelines snapshot shape — a root object
// with a top-level "layers" but no "timelines" — and wraps it into a
// single timeline. raw is the as-decoded JSON document; it is mutated
// and returned unchanged if it already has the current shape.
func MigrateLegacy(raw map[string]any) map[string]any {
	if _, hasTimelines := raw["timelines"]; hasTimelines {
		return raw
	}
	layers, hasLayers := raw["layers"]
	if !hasLayers {
		return raw
	}

	timeline := map[string]any{
		"layers":    layers,
		"variables": raw["variables"],
	}
	raw["timelines"] = map[string]any{legacyTimelineID: timeline}
	raw["timelinesMetadata"] = []any{
		map[string]any{
			"id":       legacyTimelineID,
			"name":     "Main",
			"isActive": true,
			"order":    0,
		},
	}
	delete(raw, "layers")
	delete(raw, "variables")
	return raw
}

// EnsureScaffold fills in any zero-value collections a decoded
// Snapshot is missing, for snapshots round-tripped through a generic
// JSON codec that may have dropped empty maps/slices.
func EnsureScaffold(s graphmodel.Snapshot) graphmodel.Snapshot {
	if s.Timelines == nil {
		s.Timelines = map[string]graphmodel.Timeline{}
	}
	for id, tl := range s.Timelines {
		tl.EnsureRoot()
		for lid, l := range tl.Layers {
			if l.Nodes == nil {
				l.Nodes = map[string]graphmodel.Node{}
			}
			if l.Edges == nil {
				l.Edges = map[string]graphmodel.Edge{}
			}
			if l.NodeIDs == nil {
				l.NodeIDs = []string{}
			}
			tl.Layers[lid] = l
		}
		s.Timelines[id] = tl
	}
	if s.TimelinesMetadata == nil {
		s.TimelinesMetadata = []graphmodel.TimelineMeta{}
	}
	return s
}
