package interpreter

import (
	"errors"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

var errMissingVariableID = errors.New("payload missing variable id")

func variableFromPayload(p payload) graphmodel.Variable {
	return graphmodel.Variable{
		ID:    p.str("id", "variableId"),
		Name:  p.str("name"),
		Value: p["value"],
		Type:  p.str("type"),
	}
}

func applyVariableCreate(c opContext) error {
	id := c.payload.str("id", "variableId")
	if c.action == actionUndo {
		return removeVariable(c, id)
	}

	v := variableFromPayload(c.payload)
	if v.ID == "" {
		return errMissingVariableID
	}

	tl, save := c.timeline()
	for i, existing := range tl.Variables {
		if existing.ID == v.ID {
			tl.Variables[i] = v
			save(tl)
			return nil
		}
	}
	tl.Variables = append(tl.Variables, v)
	save(tl)
	return nil
}

func applyVariableDelete(c opContext) error {
	id := c.payload.str("id", "variableId")
	if id == "" {
		return errMissingVariableID
	}

	if c.action == actionUndo {
		return applyVariableCreate(opContext{
			snapshot: c.snapshot, timelineID: c.timelineID, layerID: c.layerID,
			payload: asPayload(c.payload.obj("variable", "previousVariable")),
			action:  actionForward,
		})
	}

	return removeVariable(c, id)
}

func removeVariable(c opContext, id string) error {
	if id == "" {
		return errMissingVariableID
	}
	tl, save := c.timeline()
	filtered := tl.Variables[:0:0]
	for _, v := range tl.Variables {
		if v.ID != id {
			filtered = append(filtered, v)
		}
	}
	tl.Variables = filtered
	save(tl)
	return nil
}

func applyVariableUpdate(c opContext) error {
	id := c.payload.str("id", "variableId")
	if id == "" {
		return errMissingVariableID
	}

	var patch map[string]any
	if c.action == actionUndo {
		patch = c.payload.obj("previous")
	} else {
		patch = map[string]any(c.payload)
	}

	tl, save := c.timeline()
	for i, v := range tl.Variables {
		if v.ID != id {
			continue
		}
		if name, ok := patch["name"].(string); ok {
			v.Name = name
		}
		if val, ok := patch["value"]; ok {
			v.Value = val
		}
		if typ, ok := patch["type"].(string); ok {
			v.Type = typ
		}
		tl.Variables[i] = v
		break
	}
	save(tl)
	return nil
}
