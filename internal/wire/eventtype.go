// Package wire holds the event-type vocabulary every subsystem that
// publishes or dispatches collaboration events shares. It has no dependencies so internal/session,
// internal/presence, internal/events, and internal/hub can all import it
// without a cycle.
package wire

// Awareness event types.
const (
	CursorMove        = "CURSOR_MOVE" // legacy alias of LayerCursorUpdate
	LayerCursorUpdate = "LAYER_CURSOR_UPDATE"
	LayerCursorEnter  = "LAYER_CURSOR_ENTER"
	LayerCursorLeave  = "LAYER_CURSOR_LEAVE"
	SelectionChange   = "SELECTION_CHANGE"
	AwarenessUpdate   = "AWARENESS_UPDATE"
	NodeDragPreview   = "NODE_DRAG_PREVIEW"
	UserJoin          = "USER_JOIN"
	UserLeave         = "USER_LEAVE"
)

// Operation relay event type: the envelope type for a submitted batch
// of graph operations; the operation kinds themselves are
// internal/interpreter's alias vocabulary, carried in the payload.
const OperationBroadcast = "OPERATION_BROADCAST"

// AI-relay event types: opaque payloads, re-broadcast only.
const (
	AIPipelineStarted       = "AI_PIPELINE_STARTED"
	AIPipelineProgress      = "AI_PIPELINE_PROGRESS"
	AIPipelineStepCompleted = "AI_PIPELINE_STEP_COMPLETED"
	AIPipelineCompleted     = "AI_PIPELINE_COMPLETED"
	AIPipelineError         = "AI_PIPELINE_ERROR"
)

// Client->server room lifecycle event names: a connected socket joins
// and leaves project rooms with these, any number of times over its
// lifetime.
const (
	JoinProject  = "join_project"
	LeaveProject = "leave_project"
)

// Socket-scoped reply event names.
const (
	ProjectUsers       = "project_users"
	JoinProjectSuccess = "join_project_success"
	JoinProjectError   = "join_project_error"
	OperationResult    = "operation_result"
	OperationError     = "operation_error"
	ErrorEvent         = "error"
)
