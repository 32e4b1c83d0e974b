package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sumatoshi-tech/collabgraph/internal/bus"
	"github.com/sumatoshi-tech/collabgraph/internal/observability"
	"github.com/sumatoshi-tech/collabgraph/internal/wire"
)

// Clock lets tests control "now" deterministically.
type Clock func() time.Time

// Registry manages session lifecycle backed by a bus.Bus. Whether
// sessions live only in this process or are shared across instances
// is entirely a property of which Bus implementation it is
// constructed with; Registry's own logic never changes.
type Registry struct {
	b       bus.Bus
	ttl     time.Duration
	now     Clock
	metrics *observability.CollabMetrics
}

// New returns a Registry backed by b, with shared session records
// expiring after ttl, refreshed on every update.
func New(b bus.Bus, ttl time.Duration) *Registry {
	return &Registry{b: b, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source (tests).
func (r *Registry) WithClock(c Clock) *Registry {
	r.now = c
	return r
}

// WithMetrics attaches the collaboration-domain instruments; nil by
// default so Registry works unmodified in tests that don't construct them.
func (r *Registry) WithMetrics(m *observability.CollabMetrics) *Registry {
	r.metrics = m
	return r
}

// CreateSession opens a session for a joining socket: idempotent per
// socketId, and evicts any existing session for (userId, projectId)
// before creating the new one.
func (r *Registry) CreateSession(ctx context.Context, userID, userName, projectID, socketID string) (Session, error) {
	if existingID, ok, err := r.b.GetSessionIDBySocket(ctx, socketID); err == nil && ok {
		if existing, found, err := r.get(ctx, existingID); err == nil && found {
			return existing, nil
		}
	}

	if err := r.evictExistingForUser(ctx, userID, projectID, socketID); err != nil {
		return Session{}, err
	}

	now := r.now().UnixMilli()
	s := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		SocketID:  socketID,
		Awareness: Awareness{
			UserID:   userID,
			UserName: userName,
			LastSeen: now,
		},
		JoinedAt:     now,
		LastActivity: now,
	}

	if err := r.persist(ctx, s); err != nil {
		return Session{}, err
	}

	if r.metrics != nil {
		r.metrics.SessionOpened(ctx)
	}

	r.publish(ctx, wire.UserJoin, s, s.SocketID)
	return s, nil
}

// evictExistingForUser ends any session already open for (userID,
// projectID), broadcasting USER_LEAVE before removal.
func (r *Registry) evictExistingForUser(ctx context.Context, userID, projectID, excludeSocketID string) error {
	ids, err := r.b.GetProjectSessions(ctx, projectID)
	if err != nil {
		return fmt.Errorf("session: list project sessions: %w", err)
	}
	for _, id := range ids {
		s, ok, err := r.get(ctx, id)
		if err != nil || !ok {
			continue
		}
		if s.UserID != userID {
			continue
		}
		if err := r.endSession(ctx, s, excludeSocketID); err != nil {
			return err
		}
	}
	return nil
}

// EndSession tears a session down, broadcasting USER_LEAVE before
// removing the session from every index.
func (r *Registry) EndSession(ctx context.Context, sessionID string) error {
	s, ok, err := r.get(ctx, sessionID)
	if err != nil || !ok {
		return err
	}
	return r.endSession(ctx, s, "")
}

func (r *Registry) endSession(ctx context.Context, s Session, excludeSocketID string) error {
	r.publish(ctx, wire.UserLeave, s, excludeSocketID)

	if err := r.b.RemoveSession(ctx, s.ID); err != nil {
		return fmt.Errorf("session: remove: %w", err)
	}
	if err := r.b.RemoveSocketSessionMapping(ctx, s.SocketID); err != nil {
		return fmt.Errorf("session: remove socket mapping: %w", err)
	}
	if r.metrics != nil {
		r.metrics.SessionClosed(ctx)
	}
	return nil
}

// UpdateAwareness applies a shallow merge into Awareness, bumping
// LastSeen/LastActivity, then broadcasting AWARENESS_UPDATE.
func (r *Registry) UpdateAwareness(ctx context.Context, sessionID string, patch map[string]any) (Session, error) {
	s, ok, err := r.get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	mergeAwareness(&s.Awareness, patch)
	now := r.now().UnixMilli()
	s.Awareness.LastSeen = now
	s.LastActivity = now

	if err := r.persist(ctx, s); err != nil {
		return Session{}, err
	}
	r.publish(ctx, wire.AwarenessUpdate, s, s.SocketID)
	return s, nil
}

func mergeAwareness(a *Awareness, patch map[string]any) {
	if v, ok := patch["userName"].(string); ok {
		a.UserName = v
	}
	if v, ok := patch["userPicture"].(string); ok {
		a.UserPicture = v
	}
	if v, ok := patch["cursor"].(map[string]any); ok {
		a.Cursor = v
	}
	if v, ok := patch["selection"].(map[string]any); ok {
		a.Selection = v
	}
}

// GetProjectSessions returns every live session attached to projectID.
func (r *Registry) GetProjectSessions(ctx context.Context, projectID string) ([]Session, error) {
	ids, err := r.b.GetProjectSessions(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("session: list project sessions: %w", err)
	}
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		s, ok, err := r.get(ctx, id)
		if err == nil && ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetSessionBySocketID resolves the session a socket belongs to.
func (r *Registry) GetSessionBySocketID(ctx context.Context, socketID string) (Session, bool, error) {
	id, ok, err := r.b.GetSessionIDBySocket(ctx, socketID)
	if err != nil || !ok {
		return Session{}, false, err
	}
	return r.get(ctx, id)
}

// CleanupInactiveSessions ends every session whose LastActivity is
// older than timeout.
func (r *Registry) CleanupInactiveSessions(ctx context.Context, projectID string, timeout time.Duration) error {
	sessions, err := r.GetProjectSessions(ctx, projectID)
	if err != nil {
		return err
	}
	cutoff := r.now().Add(-timeout).UnixMilli()
	for _, s := range sessions {
		if s.LastActivity < cutoff {
			if err := r.endSession(ctx, s, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) get(ctx context.Context, sessionID string) (Session, bool, error) {
	data, ok, err := r.b.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, false, fmt.Errorf("session: get: %w", err)
	}
	if !ok {
		return Session{}, false, nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("session: decode: %w", err)
	}
	return s, true, nil
}

func (r *Registry) persist(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := r.b.SaveSession(ctx, s.ID, data, r.ttl); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	if err := r.b.SetSocketSessionMapping(ctx, s.SocketID, s.ID, r.ttl); err != nil {
		return fmt.Errorf("session: map socket: %w", err)
	}
	if indexer, ok := r.b.(bus.Indexer); ok {
		if err := indexer.IndexSession(ctx, s.ProjectID, s.UserID, s.ID, r.ttl); err != nil {
			return fmt.Errorf("session: index: %w", err)
		}
	}
	return nil
}

func (r *Registry) publish(ctx context.Context, eventType string, s Session, excludeSocketID string) {
	_ = r.b.PublishToProject(ctx, s.ProjectID, bus.Event{
		Type:            eventType,
		Payload:         map[string]any{"session": s, "awareness": s.Awareness},
		UserID:          s.UserID,
		ProjectID:       s.ProjectID,
		Timestamp:       r.now().UnixMilli(),
		ExcludeSocketID: excludeSocketID,
	})
}
