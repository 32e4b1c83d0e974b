package interpreter

import (
	"errors"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

var errMissingLayerID = errors.New("payload missing layer id")

func applyLayerCreate(c opContext) error {
	layerID := c.payload.str("layerId", "id")
	if layerID == "" {
		return errMissingLayerID
	}
	parentID := c.payload.str("parentLayerId", "parentId")
	if parentID == "" {
		parentID = graphmodel.RootLayerID
	}
	name := c.payload.str("name")

	if c.action == actionUndo {
		return deleteLayer(c, layerID, parentID)
	}

	tl, saveTL := c.timeline()
	tl.EnsureRoot()
	if _, exists := tl.Layers[layerID]; !exists {
		newLayer := graphmodel.NewLayer(layerID, name)
		newLayer.ParentLayerID = parentID
		if d, ok := c.payload.number("depth"); ok {
			newLayer.Depth = int(d)
		}
		tl.Layers[layerID] = newLayer
	}
	saveTL(tl)

	parent := c.snapshot.EnsureLayer(c.timelineID, parentID)
	proxy := graphmodel.Node{
		ID:          layerID,
		Type:        graphmodel.NodeLayer,
		Coordinates: c.payload.point("coordinates", "position"),
		Data:        map[string]any{"name": name},
	}
	parent.Nodes[layerID] = proxy
	found := false
	for _, id := range parent.NodeIDs {
		if id == layerID {
			found = true
			break
		}
	}
	if !found {
		parent.NodeIDs = append(parent.NodeIDs, layerID)
	}
	c.snapshot.PutLayer(c.timelineID, parent)
	return nil
}

func applyLayerDelete(c opContext) error {
	layerID := c.payload.str("layerId", "id")
	if layerID == "" {
		return errMissingLayerID
	}
	parentID := c.payload.str("parentLayerId", "parentId")
	if parentID == "" {
		parentID = graphmodel.RootLayerID
	}

	if c.action == actionUndo {
		return applyLayerCreate(opContext{
			snapshot:   c.snapshot,
			timelineID: c.timelineID,
			layerID:    c.layerID,
			payload:    c.payload,
			action:     actionForward,
		})
	}

	return deleteLayer(c, layerID, parentID)
}

func deleteLayer(c opContext, layerID, parentID string) error {
	tl, saveTL := c.timeline()
	delete(tl.Layers, layerID)
	saveTL(tl)

	parent := c.snapshot.EnsureLayer(c.timelineID, parentID)
	delete(parent.Nodes, layerID)
	filtered := parent.NodeIDs[:0:0]
	for _, id := range parent.NodeIDs {
		if id != layerID {
			filtered = append(filtered, id)
		}
	}
	parent.NodeIDs = filtered
	parent.PurgeDanglingEdges()
	c.snapshot.PutLayer(c.timelineID, parent)
	return nil
}

func applyLayerUpdate(c opContext) error {
	layerID := c.payload.str("layerId", "id")
	if layerID == "" {
		return errMissingLayerID
	}
	parentID := c.payload.str("parentLayerId", "parentId")
	if parentID == "" {
		parentID = graphmodel.RootLayerID
	}

	var name string
	if c.action == actionUndo {
		name = c.payload.str("previousName")
	} else {
		name = c.payload.str("name")
	}
	if name == "" {
		return nil
	}

	tl, saveTL := c.timeline()
	l, ok := tl.Layers[layerID]
	if ok {
		l.Name = name
		tl.Layers[layerID] = l
	}
	saveTL(tl)

	parent := c.snapshot.EnsureLayer(c.timelineID, parentID)
	if proxy, ok := parent.Nodes[layerID]; ok {
		if proxy.Data == nil {
			proxy.Data = map[string]any{}
		}
		proxy.Data["name"] = name
		parent.Nodes[layerID] = proxy
		c.snapshot.PutLayer(c.timelineID, parent)
	}
	return nil
}

func applyLayerMove(c opContext) error {
	layerID := c.payload.str("layerId", "id")
	if layerID == "" {
		return errMissingLayerID
	}
	parentID := c.payload.str("parentLayerId", "parentId")
	if parentID == "" {
		parentID = graphmodel.RootLayerID
	}

	var pt graphmodel.Point
	if c.action == actionUndo {
		pt = c.payload.point("previousCoordinates", "previousPosition", "from")
	} else {
		pt = c.payload.point("coordinates", "position", "to")
	}

	parent := c.snapshot.EnsureLayer(c.timelineID, parentID)
	proxy, ok := parent.Nodes[layerID]
	if !ok {
		return nil
	}
	proxy.Coordinates = pt
	parent.Nodes[layerID] = proxy
	c.snapshot.PutLayer(c.timelineID, parent)
	return nil
}

func applyLayerEndings(c opContext) error {
	layerID := c.payload.str("layerId", "id")
	if layerID == "" {
		return errMissingLayerID
	}
	parentID := c.payload.str("parentLayerId", "parentId")
	if parentID == "" {
		parentID = graphmodel.RootLayerID
	}

	parent := c.snapshot.EnsureLayer(c.timelineID, parentID)
	proxy, ok := parent.Nodes[layerID]
	if !ok {
		return nil
	}
	proxy.StartingNodes = mergeStrings(proxy.StartingNodes, toStrings(c.payload.arr("startingNodes")))
	proxy.EndingNodes = mergeStrings(proxy.EndingNodes, toStrings(c.payload.arr("endingNodes")))
	parent.Nodes[layerID] = proxy
	c.snapshot.PutLayer(c.timelineID, parent)
	return nil
}

func toStrings(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mergeStrings(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	out := append([]string(nil), base...)
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
