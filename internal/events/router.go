// Package events validates inbound socket envelopes and dispatches
// them to the awareness, operation, or AI-relay handler.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/sumatoshi-tech/collabgraph/internal/bus"
	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
	"github.com/sumatoshi-tech/collabgraph/internal/presence"
	"github.com/sumatoshi-tech/collabgraph/internal/serializer"
	"github.com/sumatoshi-tech/collabgraph/internal/session"
	"github.com/sumatoshi-tech/collabgraph/internal/wire"
)

// Emitter delivers a socket-scoped reply, bypassing the project
// broadcast fan-out. internal/hub implements this against its live
// socket registry.
type Emitter interface {
	EmitToSocket(socketID, eventType string, payload map[string]any)
}

// Rooms mutates a connected socket's project-room membership.
// internal/hub implements this; the join_project/leave_project cases
// below delegate to it so a socket can enter and leave any number of
// rooms over its lifetime. Both calls reply (or stay silent) through
// the hub itself, not through the router.
type Rooms interface {
	JoinProject(ctx context.Context, socketID, projectID, teamID string)
	LeaveProject(ctx context.Context, socketID, projectID string)
}

// Envelope is the inbound client->server event frame.
type Envelope struct {
	Type      string         `json:"type" validate:"required"`
	UserID    string         `json:"userId"`
	ProjectID string         `json:"projectId" validate:"required"`
	Timestamp int64          `json:"timestamp" validate:"required"`
	Payload   map[string]any `json:"payload" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Router is the static event dispatch table.
type Router struct {
	sessions   *session.Registry
	presence   *presence.Tracker
	serializer *serializer.Serializer
	b          bus.Bus
	emit       Emitter
	rooms      Rooms
}

// New returns a Router wired to the already-constructed session,
// presence, serializer, and bus components, plus the hub-supplied
// Emitter for direct socket replies and Rooms for membership changes.
func New(sessions *session.Registry, pres *presence.Tracker, ser *serializer.Serializer, b bus.Bus, emit Emitter, rooms Rooms) *Router {
	return &Router{sessions: sessions, presence: pres, serializer: ser, b: b, emit: emit, rooms: rooms}
}

// Dispatch validates env and routes it, rewriting env.UserID to the
// authenticated identity so a client can never forge another user's
// actions.
func (r *Router) Dispatch(ctx context.Context, socketID, authenticatedUserID string, env Envelope) {
	if err := validate.Struct(env); err != nil {
		r.emit.EmitToSocket(socketID, wire.ErrorEvent, map[string]any{
			"message":   "malformed event envelope",
			"eventType": env.Type,
		})
		return
	}
	env.UserID = authenticatedUserID

	// Old clients still send CURSOR_MOVE for what is now a layer-scoped
	// cursor update.
	if env.Type == wire.CursorMove {
		env.Type = wire.LayerCursorUpdate
	}

	switch env.Type {
	case wire.JoinProject:
		r.rooms.JoinProject(ctx, socketID, env.ProjectID, strField(env.Payload, "teamId"))
	case wire.LeaveProject:
		r.rooms.LeaveProject(ctx, socketID, env.ProjectID)
	case wire.LayerCursorUpdate, wire.LayerCursorEnter, wire.LayerCursorLeave, wire.SelectionChange, wire.NodeDragPreview:
		r.handleAwareness(ctx, socketID, env)
	case wire.OperationBroadcast:
		r.handleOperation(ctx, socketID, env)
	case wire.AIPipelineStarted, wire.AIPipelineProgress, wire.AIPipelineStepCompleted, wire.AIPipelineCompleted, wire.AIPipelineError:
		r.handleAIRelay(ctx, socketID, env)
	default:
		r.emit.EmitToSocket(socketID, wire.ErrorEvent, map[string]any{
			"message":   "unknown event type",
			"eventType": env.Type,
		})
	}
}

func strField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// handleAwareness covers the cursor/selection/drag branch: cursor and
// selection updates touch session/presence state, drag previews are a
// pure rebroadcast.
func (r *Router) handleAwareness(ctx context.Context, socketID string, env Envelope) {
	switch env.Type {
	case wire.LayerCursorUpdate, wire.LayerCursorEnter:
		timelineID := strField(env.Payload, "timelineId")
		layerID := strField(env.Payload, "layerId")
		sessionID := strField(env.Payload, "sessionId")
		userName := strField(env.Payload, "userName")
		userPicture := strField(env.Payload, "userPicture")

		var cursor presence.Cursor
		if c, ok := env.Payload["cursor"].(map[string]any); ok {
			if x, ok := c["x"].(float64); ok {
				cursor.X = x
			}
			if y, ok := c["y"].(float64); ok {
				cursor.Y = y
			}
		}

		if err := r.presence.UpdateCursor(ctx, env.UserID, userName, env.ProjectID, timelineID, layerID, cursor, sessionID, userPicture); err != nil {
			slog.Warn("events: update cursor failed", "err", err)
		}

	case wire.LayerCursorLeave:
		timelineID := strField(env.Payload, "timelineId")
		layerID := strField(env.Payload, "layerId")
		if err := r.presence.LeaveLayer(ctx, env.UserID, env.ProjectID, timelineID, layerID); err != nil {
			slog.Warn("events: leave layer failed", "err", err)
		}

	case wire.SelectionChange:
		sessionID := strField(env.Payload, "sessionId")
		if sessionID == "" {
			return
		}
		if _, err := r.sessions.UpdateAwareness(ctx, sessionID, env.Payload); err != nil {
			slog.Warn("events: update selection failed", "err", err)
		}

	case wire.NodeDragPreview:
		_ = r.b.PublishToProject(ctx, env.ProjectID, bus.Event{
			Type:            wire.NodeDragPreview,
			ProjectID:       env.ProjectID,
			UserID:          env.UserID,
			Timestamp:       env.Timestamp,
			ExcludeSocketID: socketID,
			Payload:         env.Payload,
		})
	}
}

// handleOperation hands the batch to the serializer and reports the
// outcome back to the submitting socket only. The per-op broadcast to
// the rest of the project is the serializer's own responsibility.
func (r *Router) handleOperation(ctx context.Context, socketID string, env Envelope) {
	batch, err := decodeBatch(env)
	if err != nil {
		r.emit.EmitToSocket(socketID, wire.OperationError, map[string]any{
			"message": err.Error(),
		})
		return
	}

	result, err := r.serializer.ProcessBatch(ctx, env.UserID, socketID, batch)
	if err != nil {
		r.emit.EmitToSocket(socketID, wire.OperationError, map[string]any{
			"message": err.Error(),
		})
		return
	}

	r.emit.EmitToSocket(socketID, wire.OperationResult, map[string]any{
		"success":             result.Success,
		"syncVersion":         result.SyncVersion,
		"appliedOperationIds": result.AppliedOperationIDs,
		"conflicts":           result.Conflicts,
		"serverOperations":    result.ServerOperations,
	})
}

func decodeBatch(env Envelope) (serializer.Batch, error) {
	projectID := env.ProjectID
	deviceID := strField(env.Payload, "deviceId")

	lastSyncVersion := 0
	if v, ok := env.Payload["lastSyncVersion"].(float64); ok {
		lastSyncVersion = int(v)
	}

	rawOps, _ := env.Payload["operations"].([]any)
	ops := make([]graphmodel.Operation, 0, len(rawOps))
	for _, raw := range rawOps {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ops = append(ops, operationFromMap(m))
	}
	if len(ops) == 0 && len(rawOps) > 0 {
		return serializer.Batch{}, fmt.Errorf("events: no decodable operations in batch")
	}

	return serializer.Batch{
		ProjectID:       projectID,
		Operations:      ops,
		LastSyncVersion: lastSyncVersion,
		DeviceID:        deviceID,
	}, nil
}

func operationFromMap(m map[string]any) graphmodel.Operation {
	op := graphmodel.Operation{
		ID:         strField(m, "id"),
		Type:       strField(m, "type"),
		TimelineID: strField(m, "timelineId"),
		LayerID:    strField(m, "layerId"),
	}
	if payload, ok := m["payload"].(map[string]any); ok {
		op.Payload = payload
	}
	if ts, ok := m["timestamp"].(float64); ok {
		op.Timestamp = int64(ts)
	}
	return op
}

// handleAIRelay is an opaque rebroadcast to the project with no
// server-side state change.
func (r *Router) handleAIRelay(ctx context.Context, socketID string, env Envelope) {
	_ = r.b.PublishToProject(ctx, env.ProjectID, bus.Event{
		Type:            env.Type,
		ProjectID:       env.ProjectID,
		UserID:          env.UserID,
		Timestamp:       env.Timestamp,
		ExcludeSocketID: socketID,
		Payload:         env.Payload,
	})
}
