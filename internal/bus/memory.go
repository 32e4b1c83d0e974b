package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
	"github.com/sumatoshi-tech/collabgraph/pkg/ttlcache"
)

// Memory is the in-process Bus implementation for single-instance
// deployments and tests: every subscriber lives in this process, so
// PublishToProject just calls local handlers directly — no loop risk,
// but Instance()/SourceInstanceID are still stamped for interface parity
// with Redis. Session and socket-mapping KV state is
// kept in pkg/ttlcache rather than a hand-rolled map, so idle entries
// expire after ttl.
type Memory struct {
	instance string
	ttl      time.Duration

	mu          sync.RWMutex
	subscribers map[string]map[string]Handler // projectID -> subID -> handler

	sessions     *ttlcache.Cache[string, []byte]
	socketIndex  *ttlcache.Cache[string, string] // socketID -> sessionID
	projectIndex map[string]map[string]bool      // projectID -> sessionIDs (derived)
	userIndex    map[string]map[string]bool      // userID -> sessionIDs

	ops map[string][]graphmodel.Operation // projectID -> appended ops
}

// NewMemory returns an empty, ready Memory bus whose session/socket KV
// entries expire after ttl, refreshed on every save.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		instance:     uuid.NewString(),
		ttl:          ttl,
		subscribers:  map[string]map[string]Handler{},
		sessions:     ttlcache.New[string, []byte](ttl),
		socketIndex:  ttlcache.New[string, string](ttl),
		projectIndex: map[string]map[string]bool{},
		userIndex:    map[string]map[string]bool{},
		ops:          map[string][]graphmodel.Operation{},
	}
}

func (m *Memory) Instance() string { return m.instance }

func (m *Memory) PublishToProject(_ context.Context, projectID string, event Event) error {
	event.SourceInstanceID = m.instance

	m.mu.RLock()
	handlers := make([]Handler, 0, len(m.subscribers[projectID]))
	for _, h := range m.subscribers[projectID] {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (m *Memory) SubscribeToProject(_ context.Context, projectID string, handler Handler) (Unsubscribe, error) {
	id := uuid.NewString()

	m.mu.Lock()
	if m.subscribers[projectID] == nil {
		m.subscribers[projectID] = map[string]Handler{}
	}
	m.subscribers[projectID][id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers[projectID], id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) SaveSession(_ context.Context, sessionID string, data []byte, _ time.Duration) error {
	m.sessions.Set(sessionID, data, time.Now())
	return nil
}

func (m *Memory) GetSession(_ context.Context, sessionID string) ([]byte, bool, error) {
	data, ok := m.sessions.Get(sessionID, time.Now())
	return data, ok, nil
}

func (m *Memory) RemoveSession(_ context.Context, sessionID string) error {
	m.sessions.Delete(sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, set := range m.projectIndex {
		delete(set, sessionID)
	}
	for _, set := range m.userIndex {
		delete(set, sessionID)
	}
	return nil
}

// IndexSession records sessionID under projectID/userID for
// GetProjectSessions/GetUserSessions. internal/session calls this
// alongside SaveSession since the in-process bus keeps the indexes as
// plain side maps rather than deriving them from session payloads.
func (m *Memory) IndexSession(_ context.Context, projectID, userID, sessionID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projectIndex[projectID] == nil {
		m.projectIndex[projectID] = map[string]bool{}
	}
	m.projectIndex[projectID][sessionID] = true
	if m.userIndex[userID] == nil {
		m.userIndex[userID] = map[string]bool{}
	}
	m.userIndex[userID][sessionID] = true
	return nil
}

func (m *Memory) GetProjectSessions(_ context.Context, projectID string) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.projectIndex[projectID]))
	for id := range m.projectIndex[projectID] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	now := time.Now()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.sessions.Peek(id, now); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Memory) GetUserSessions(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.userIndex[userID]))
	for id := range m.userIndex[userID] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	now := time.Now()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.sessions.Peek(id, now); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Memory) SetSocketSessionMapping(_ context.Context, socketID, sessionID string, _ time.Duration) error {
	m.socketIndex.Set(socketID, sessionID, time.Now())
	return nil
}

func (m *Memory) GetSessionIDBySocket(_ context.Context, socketID string) (string, bool, error) {
	id, ok := m.socketIndex.Get(socketID, time.Now())
	return id, ok, nil
}

func (m *Memory) RemoveSocketSessionMapping(_ context.Context, socketID string) error {
	m.socketIndex.Delete(socketID)
	return nil
}

func (m *Memory) AppendOperation(_ context.Context, projectID string, op graphmodel.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[projectID] = append(m.ops[projectID], op)
	return nil
}

func (m *Memory) Shutdown(_ context.Context) error { return nil }
