package interpreter

import (
	"log/slog"
	"time"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

// Apply is a pure, total function over a snapshot and a
// batch of operations. It never returns an error — unknown op types and
// malformed payloads are logged and skipped so one bad op
// inside a batch cannot poison the others.
func Apply(snapshot graphmodel.Snapshot, ops []graphmodel.Operation, now time.Time) graphmodel.Snapshot {
	next := snapshot.Clone()

	for _, op := range ops {
		applyOne(&next, op)
	}

	next.LastModified = now.UnixMilli()
	return next
}

func applyOne(s *graphmodel.Snapshot, op graphmodel.Operation) {
	a, ok := resolve(op.Type)
	if !ok {
		slog.Warn("interpreter: unknown operation type, skipping", "type", op.Type, "opId", op.ID)
		return
	}

	p := payload(op.Payload)
	ctx := opContext{snapshot: s, timelineID: op.TimelineID, layerID: op.LayerID, payload: p, action: a.action}

	var err error
	switch a.family {
	case familyNodeCreate:
		err = applyNodeCreate(ctx)
	case familyNodeDelete:
		err = applyNodeDelete(ctx)
	case familyNodeUpdate:
		err = applyNodeUpdate(ctx)
	case familyNodeMove:
		err = applyNodeMove(ctx)
	case familyEdgeCreate:
		err = applyEdgeCreate(ctx)
	case familyEdgeDelete:
		err = applyEdgeDelete(ctx)
	case familyEdgeUpdate:
		err = applyEdgeUpdate(ctx)
	case familyLayerCreate:
		err = applyLayerCreate(ctx)
	case familyLayerDelete:
		err = applyLayerDelete(ctx)
	case familyLayerUpdate:
		err = applyLayerUpdate(ctx)
	case familyLayerMove:
		err = applyLayerMove(ctx)
	case familyLayerEndings:
		err = applyLayerEndings(ctx)
	case familyVariableCreate:
		err = applyVariableCreate(ctx)
	case familyVariableDelete:
		err = applyVariableDelete(ctx)
	case familyVariableUpdate:
		err = applyVariableUpdate(ctx)
	case familyNodesDuplicated, familyNodesPastedCopy, familyNodesPastedCut:
		err = applyCompositeAdd(ctx)
	case familyNodesCut:
		err = applyCompositeRemove(ctx)
	case familyNodesMoved:
		err = applyNodesMoved(ctx)
	case familyOperationCreated:
		err = applyInnerOperationCreated(ctx)
	case familyOperationUpdated:
		err = applyInnerOperationUpdated(ctx)
	case familyOperationDeleted:
		err = applyInnerOperationDeleted(ctx)
	case familyOperationsToggled:
		err = applyOperationsToggled(ctx)
	case familyTimelineCreated:
		err = applyTimelineCreated(ctx)
	case familyTimelineRenamed:
		err = applyTimelineRenamed(ctx)
	case familyTimelineDeleted:
		err = applyTimelineDeleted(ctx)
	case familyTimelineDuplicated:
		err = applyTimelineDuplicated(ctx)
	default:
		slog.Warn("interpreter: unhandled family, skipping", "family", a.family, "opId", op.ID)
		return
	}

	if err != nil {
		slog.Warn("interpreter: operation skipped", "type", op.Type, "opId", op.ID, "err", err)
	}
}

// opContext bundles the scaffolded target location and decoded payload
// every handler needs. Handlers receive it by value; snapshot is the
// only pointer field, so mutations flow back to the caller.
type opContext struct {
	snapshot   *graphmodel.Snapshot
	timelineID string
	layerID    string
	payload    payload
	action     action
}

// layer returns the (auto-scaffolded) target
// layer for ctx, and a setter to persist mutations back to the snapshot.
func (c opContext) layer() (graphmodel.Layer, func(graphmodel.Layer)) {
	layer := c.snapshot.EnsureLayer(c.timelineID, c.layerID)
	return layer, func(l graphmodel.Layer) {
		c.snapshot.PutLayer(c.timelineID, l)
	}
}

func (c opContext) timeline() (graphmodel.Timeline, func(graphmodel.Timeline)) {
	tl := c.snapshot.EnsureTimeline(c.timelineID)
	return tl, func(t graphmodel.Timeline) {
		c.snapshot.Timelines[c.timelineID] = t
	}
}
