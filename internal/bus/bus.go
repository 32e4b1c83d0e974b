// Package bus is the coordination substrate: the abstract pub/sub +
// session KV + operation-stream interface that single-instance and
// multi-instance deployments share, with in-process and Redis backends.
package bus

import (
	"context"
	"time"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

// Event is the broadcast envelope, plus the SourceInstanceID every
// implementation stamps on publish so subscribers can drop their own
// echoes.
type Event struct {
	Type             string         `json:"type"`
	Payload          map[string]any `json:"payload"`
	UserID           string         `json:"userId"`
	ProjectID        string         `json:"projectId"`
	Timestamp        int64          `json:"timestamp"`
	SourceInstanceID string         `json:"sourceInstanceId"`

	// ExcludeSocketID is hub-local delivery metadata, not part of the
	// client-facing frame: it names the socket that must not receive
	// this event locally (the submitter). internal/hub strips it before
	// framing the event for a client socket.
	ExcludeSocketID string `json:"excludeSocketId,omitempty"`
}

// Handler receives events published to a subscribed project.
type Handler func(Event)

// Unsubscribe removes a previously registered Handler.
type Unsubscribe func()

// Bus is the full coordination contract: pub/sub fan-out,
// session/presence KV helpers, the socket->session reverse index, and
// the durable per-project operation stream.
type Bus interface {
	// PublishToProject fans event out to every instance's subscribers
	// for projectID, including this instance's own local subscribers.
	PublishToProject(ctx context.Context, projectID string, event Event) error

	// SubscribeToProject registers handler for projectID's events.
	// Events carrying this instance's own SourceInstanceID are not
	// redelivered to local handlers registered through this call (the
	// local publish path already ran them) — see Instance.
	SubscribeToProject(ctx context.Context, projectID string, handler Handler) (Unsubscribe, error)

	// Instance returns this bus's unique, process-lifetime instance id.
	Instance() string

	// SaveSession upserts session data with a TTL, refreshed on every update.
	SaveSession(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) ([]byte, bool, error)
	RemoveSession(ctx context.Context, sessionID string) error
	GetProjectSessions(ctx context.Context, projectID string) ([]string, error)
	GetUserSessions(ctx context.Context, userID string) ([]string, error)

	SetSocketSessionMapping(ctx context.Context, socketID, sessionID string, ttl time.Duration) error
	GetSessionIDBySocket(ctx context.Context, socketID string) (string, bool, error)
	RemoveSocketSessionMapping(ctx context.Context, socketID string) error

	// AppendOperation appends op to projectID's durable, ordered stream
	// for cross-instance audit/recovery.
	AppendOperation(ctx context.Context, projectID string, op graphmodel.Operation) error

	// Shutdown releases any background resources (subscriptions, conns).
	Shutdown(ctx context.Context) error
}

// Indexer is implemented by backends (Memory, Redis) that need an
// explicit call to associate a session with its project/user for
// GetProjectSessions/GetUserSessions, since neither backend parses the
// opaque session payload to discover those fields itself.
// internal/session calls IndexSession alongside SaveSession.
type Indexer interface {
	IndexSession(ctx context.Context, projectID, userID, sessionID string, ttl time.Duration) error
}
