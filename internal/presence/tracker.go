package presence

import (
	"context"
	"sync"
	"time"

	"github.com/sumatoshi-tech/collabgraph/internal/bus"
	"github.com/sumatoshi-tech/collabgraph/internal/observability"
	"github.com/sumatoshi-tech/collabgraph/internal/wire"
)

// Clock lets tests control "now" deterministically.
type Clock func() time.Time

// Tracker keeps a local view of every layer's presence map, kept
// eventually consistent across instances by re-publishing every update
// through the coordination bus and applying both locally-originated
// and peer-originated events the same way.
type Tracker struct {
	b        bus.Bus
	colors   *colorAssigner
	inactive time.Duration
	now      Clock
	metrics  *observability.CollabMetrics

	mu     sync.Mutex
	layers map[string]map[string]LayerPresence // layerKey -> userId -> presence
	subbed map[string]bus.Unsubscribe          // projectId -> unsubscribe
}

// New returns a Tracker backed by b, evicting entries idle longer than
// inactive.
func New(b bus.Bus, inactive time.Duration) *Tracker {
	return &Tracker{
		b:        b,
		colors:   newColorAssigner(),
		inactive: inactive,
		now:      time.Now,
		layers:   map[string]map[string]LayerPresence{},
		subbed:   map[string]bus.Unsubscribe{},
	}
}

// WithClock overrides the time source (tests).
func (t *Tracker) WithClock(c Clock) *Tracker {
	t.now = c
	return t
}

// WithMetrics attaches the collaboration-domain instruments; nil by
// default so Tracker works unmodified in tests that don't construct them.
func (t *Tracker) WithMetrics(m *observability.CollabMetrics) *Tracker {
	t.metrics = m
	return t
}

// EnsureSubscribed subscribes the tracker to projectID's bus channel, if
// it has not already, so this instance's presence view stays in sync
// with peers' updates. Callers
// (internal/hub, on first join) should call this once per project.
func (t *Tracker) EnsureSubscribed(ctx context.Context, projectID string) error {
	t.mu.Lock()
	if _, ok := t.subbed[projectID]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	unsub, err := t.b.SubscribeToProject(ctx, projectID, t.handleEvent)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.subbed[projectID] = unsub
	t.mu.Unlock()
	return nil
}

func (t *Tracker) handleEvent(e bus.Event) {
	timelineID, _ := e.Payload["timelineId"].(string)
	layerID, _ := e.Payload["layerId"].(string)
	if timelineID == "" || layerID == "" {
		return
	}
	key := layerKey(e.ProjectID, timelineID, layerID)

	switch e.Type {
	case wire.LayerCursorEnter, wire.LayerCursorUpdate:
		p := decodePresence(e.Payload)
		t.mu.Lock()
		if t.layers[key] == nil {
			t.layers[key] = map[string]LayerPresence{}
		}
		_, existed := t.layers[key][p.UserID]
		t.layers[key][p.UserID] = p
		t.mu.Unlock()
		if !existed && t.metrics != nil {
			t.metrics.PresenceEntryAdded(context.Background())
		}
	case wire.LayerCursorLeave:
		userID, _ := e.Payload["userId"].(string)
		t.mu.Lock()
		_, existed := t.layers[key][userID]
		delete(t.layers[key], userID)
		t.mu.Unlock()
		if existed && t.metrics != nil {
			t.metrics.PresenceEntryRemoved(context.Background())
		}
	}
}

func decodePresence(payload map[string]any) LayerPresence {
	p := LayerPresence{
		UserID:    str(payload, "userId"),
		UserName:  str(payload, "userName"),
		UserColor: str(payload, "userColor"),
		SessionID: str(payload, "sessionId"),
	}
	if lastSeen, ok := payload["lastSeen"].(float64); ok {
		p.LastSeen = int64(lastSeen)
	}
	if cur, ok := payload["cursor"].(map[string]any); ok {
		if x, ok := cur["x"].(float64); ok {
			p.Cursor.X = x
		}
		if y, ok := cur["y"].(float64); ok {
			p.Cursor.Y = y
		}
		if ts, ok := cur["timestamp"].(float64); ok {
			p.Cursor.Timestamp = int64(ts)
		}
	}
	return p
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// UpdateCursor refreshes one user's cursor in a layer: assigns a stable
// color, decides ENTER vs UPDATE based on whether the user already has
// a presence entry in this layer, and publishes the result. The bus
// subscription (EnsureSubscribed) is what actually lands the update in
// t.layers — for the in-process Memory bus that happens synchronously
// within this call.
func (t *Tracker) UpdateCursor(ctx context.Context, userID, userName, projectID, timelineID, layerID string, cursor Cursor, sessionID, userPicture string) error {
	key := layerKey(projectID, timelineID, layerID)
	color := t.colors.colorFor(userID)

	t.mu.Lock()
	_, existed := t.layers[key][userID]
	t.mu.Unlock()

	eventType := wire.LayerCursorUpdate
	if !existed {
		eventType = wire.LayerCursorEnter
	}

	now := t.now().UnixMilli()
	cursor.Timestamp = now

	return t.b.PublishToProject(ctx, projectID, bus.Event{
		Type:      eventType,
		ProjectID: projectID,
		UserID:    userID,
		Timestamp: now,
		Payload: map[string]any{
			"timelineId":  timelineID,
			"layerId":     layerID,
			"userId":      userID,
			"userName":    userName,
			"userColor":   color,
			"userPicture": userPicture,
			"sessionId":   sessionID,
			"lastSeen":    float64(now),
			"cursor": map[string]any{
				"x": cursor.X, "y": cursor.Y, "timestamp": float64(cursor.Timestamp),
			},
		},
	})
}

// LeaveLayer removes the user's entry from the layer bucket and
// publishes LAYER_CURSOR_LEAVE.
func (t *Tracker) LeaveLayer(ctx context.Context, userID, projectID, timelineID, layerID string) error {
	return t.b.PublishToProject(ctx, projectID, bus.Event{
		Type:      wire.LayerCursorLeave,
		ProjectID: projectID,
		UserID:    userID,
		Timestamp: t.now().UnixMilli(),
		Payload: map[string]any{
			"timelineId": timelineID,
			"layerId":    layerID,
			"userId":     userID,
		},
	})
}

// GetLayerPresence returns a layer's live presence: only entries
// seen within the inactivity window are returned.
func (t *Tracker) GetLayerPresence(projectID, timelineID, layerID string) []LayerPresence {
	key := layerKey(projectID, timelineID, layerID)
	cutoff := t.now().Add(-t.inactive).UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]LayerPresence, 0, len(t.layers[key]))
	for _, p := range t.layers[key] {
		if p.LastSeen >= cutoff {
			out = append(out, p)
		}
	}
	return out
}

// Cleanup evicts entries older than the inactivity window and removes
// now-empty layer buckets. Callers run this on a ~10s ticker.
func (t *Tracker) Cleanup() {
	cutoff := t.now().Add(-t.inactive).UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	for key, users := range t.layers {
		for userID, p := range users {
			if p.LastSeen < cutoff {
				delete(users, userID)
				if t.metrics != nil {
					t.metrics.PresenceEntryRemoved(context.Background())
				}
			}
		}
		if len(users) == 0 {
			delete(t.layers, key)
		}
	}
}
