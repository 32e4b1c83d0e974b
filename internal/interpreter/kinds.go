// Package interpreter is the pure graph-operation interpreter:
// Apply(snapshot, ops) -> snapshot'. It never fails on unknown op types or
// malformed payloads — it logs and skips, keeping the per-project serializer
// (internal/serializer) free to commit whatever a batch produced.
package interpreter

// family is the canonical operation family a wire op-type alias resolves
// to. Every family has a forward handler; redo variants replay it with
// actionForward and undo variants with actionUndo — the payload
// itself carries the data needed to reverse a forward mutation (
// "do not try to derive undo from the op algebra").
type family string

const (
	familyNodeCreate         family = "node.create"
	familyNodeDelete         family = "node.delete"
	familyNodeUpdate         family = "node.update"
	familyNodeMove           family = "node.move"
	familyEdgeCreate         family = "edge.create"
	familyEdgeDelete         family = "edge.delete"
	familyEdgeUpdate         family = "edge.update"
	familyLayerCreate        family = "layer.create"
	familyLayerDelete        family = "layer.delete"
	familyLayerUpdate        family = "layer.update"
	familyLayerMove          family = "layer.move"
	familyLayerEndings       family = "layer.endings"
	familyVariableCreate     family = "variable.create"
	familyVariableDelete     family = "variable.delete"
	familyVariableUpdate     family = "variable.update"
	familyNodesDuplicated    family = "nodes.duplicated"
	familyNodesCut           family = "nodes.cut"
	familyNodesPastedCopy    family = "nodes.pasted.copy"
	familyNodesPastedCut     family = "nodes.pasted.cut"
	familyNodesMoved         family = "nodes.moved"
	familyOperationCreated   family = "operation.created"
	familyOperationUpdated   family = "operation.updated"
	familyOperationDeleted   family = "operation.deleted"
	familyOperationsToggled  family = "operations.toggled"
	familyTimelineCreated    family = "timeline.created"
	familyTimelineRenamed    family = "timeline.renamed"
	familyTimelineDeleted    family = "timeline.deleted"
	familyTimelineDuplicated family = "timeline.duplicated"
)

// action distinguishes a forward application from a replayed undo.
// Redo is treated identically to forward (it must be a
// no-op if the target is already in the expected state, which every
// forward handler here already satisfies by construction).
type action int

const (
	actionForward action = iota
	actionUndo
)

type alias struct {
	family family
	action action
}

// aliasTable maps every wire op-type string to its family
// and action. Built once; resolve() is a map lookup.
var aliasTable = buildAliasTable()

func buildAliasTable() map[string]alias {
	t := map[string]alias{}

	add := func(f family, forward, forwardRedo, undo string) {
		if forward != "" {
			t[forward] = alias{f, actionForward}
		}
		if forwardRedo != "" {
			t[forwardRedo] = alias{f, actionForward}
		}
		if undo != "" {
			t[undo] = alias{f, actionUndo}
		}
	}

	add(familyNodeCreate, "CREATE_NODE", "node.added.redo", "node.added.undo")
	t["node.added"] = alias{familyNodeCreate, actionForward}

	add(familyNodeDelete, "DELETE_NODE", "node.deleted.redo", "node.deleted.undo")
	t["node.deleted"] = alias{familyNodeDelete, actionForward}

	add(familyNodeUpdate, "UPDATE_NODE", "node.updated.redo", "node.updated.undo")
	t["node.updated"] = alias{familyNodeUpdate, actionForward}

	add(familyNodeMove, "MOVE_NODE", "node.moved.redo", "node.moved.undo")
	t["node.moved"] = alias{familyNodeMove, actionForward}

	add(familyEdgeCreate, "CREATE_EDGE", "edge.added.redo", "edge.added.undo")
	t["edge.added"] = alias{familyEdgeCreate, actionForward}

	add(familyEdgeDelete, "DELETE_EDGE", "edge.deleted.redo", "edge.deleted.undo")
	t["edge.deleted"] = alias{familyEdgeDelete, actionForward}

	add(familyEdgeUpdate, "UPDATE_EDGE", "edge.updated.redo", "edge.updated.undo")
	t["edge.updated"] = alias{familyEdgeUpdate, actionForward}
	t["edge.conditions_updated"] = alias{familyEdgeUpdate, actionForward} // legacy alias

	add(familyLayerCreate, "CREATE_LAYER", "layer.added.redo", "layer.added.undo")
	t["layer.added"] = alias{familyLayerCreate, actionForward}

	add(familyLayerDelete, "DELETE_LAYER", "layer.deleted.redo", "layer.deleted.undo")
	t["layer.deleted"] = alias{familyLayerDelete, actionForward}

	add(familyLayerUpdate, "UPDATE_LAYER", "layer.updated.redo", "layer.updated.undo")
	t["layer.updated"] = alias{familyLayerUpdate, actionForward}

	add(familyLayerMove, "", "layer.moved.redo", "layer.moved.undo")
	t["layer.moved"] = alias{familyLayerMove, actionForward}

	t["layer.endings.updated"] = alias{familyLayerEndings, actionForward}

	add(familyVariableCreate, "CREATE_VARIABLE", "variable.added.redo", "variable.added.undo")
	t["variable.added"] = alias{familyVariableCreate, actionForward}

	add(familyVariableDelete, "DELETE_VARIABLE", "variable.deleted.redo", "variable.deleted.undo")
	t["variable.deleted"] = alias{familyVariableDelete, actionForward}

	add(familyVariableUpdate, "UPDATE_VARIABLE", "variable.updated.redo", "variable.updated.undo")
	t["variable.updated"] = alias{familyVariableUpdate, actionForward}

	add(familyNodesDuplicated, "", "nodes.duplicated.redo", "nodes.duplicated.undo")
	t["nodes.duplicated"] = alias{familyNodesDuplicated, actionForward}

	add(familyNodesCut, "", "nodes.cut.redo", "nodes.cut.undo")
	t["nodes.cut"] = alias{familyNodesCut, actionForward}

	add(familyNodesPastedCopy, "", "nodes.pasted.copy.redo", "nodes.pasted.copy.undo")
	t["nodes.pasted.copy"] = alias{familyNodesPastedCopy, actionForward}

	add(familyNodesPastedCut, "", "nodes.pasted.cut.redo", "nodes.pasted.cut.undo")
	t["nodes.pasted.cut"] = alias{familyNodesPastedCut, actionForward}

	add(familyNodesMoved, "", "nodes.moved.redo", "nodes.moved.undo")
	t["nodes.moved"] = alias{familyNodesMoved, actionForward}

	add(familyOperationCreated, "", "operation.created.redo", "operation.created.undo")
	t["operation.created"] = alias{familyOperationCreated, actionForward}

	add(familyOperationUpdated, "", "operation.updated.redo", "operation.updated.undo")
	t["operation.updated"] = alias{familyOperationUpdated, actionForward}

	add(familyOperationDeleted, "", "operation.deleted.redo", "operation.deleted.undo")
	t["operation.deleted"] = alias{familyOperationDeleted, actionForward}

	add(familyOperationsToggled, "", "operations.toggled.redo", "operations.toggled.undo")
	t["operations.toggled"] = alias{familyOperationsToggled, actionForward}

	t["timeline.created"] = alias{familyTimelineCreated, actionForward}
	t["timeline.renamed"] = alias{familyTimelineRenamed, actionForward}
	t["timeline.deleted"] = alias{familyTimelineDeleted, actionForward}
	t["timeline.duplicated"] = alias{familyTimelineDuplicated, actionForward}

	return t
}

func resolve(opType string) (alias, bool) {
	a, ok := aliasTable[opType]
	return a, ok
}
