// Package hub owns the WebSocket lifecycle: handshake auth, project
// room membership, and socket-scoped delivery, wired to the session
// registry, presence tracker, and event router.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sumatoshi-tech/collabgraph/internal/access"
	"github.com/sumatoshi-tech/collabgraph/internal/bus"
	"github.com/sumatoshi-tech/collabgraph/internal/events"
	"github.com/sumatoshi-tech/collabgraph/internal/presence"
	"github.com/sumatoshi-tech/collabgraph/internal/session"
	"github.com/sumatoshi-tech/collabgraph/internal/wire"
)

// Hub owns the live socket registry, fans bus events out to the
// sockets local to this instance, and is both the events.Emitter that
// internal/events replies through and the events.Rooms that its
// join_project/leave_project handlers mutate membership through. One
// socket may be in any number of project rooms at once; joins and
// leaves after the handshake arrive as inbound events.
type Hub struct {
	sessions *session.Registry
	pres     *presence.Tracker
	gate     *access.Gate
	b        bus.Bus
	router   *events.Router

	mu        sync.RWMutex
	rooms     map[string]map[string]*conn  // projectId -> socketId -> conn
	byID      map[string]*conn             // socketId -> conn
	bySession map[string]map[string]string // socketId -> projectId -> sessionId
	busSubbed map[string]bus.Unsubscribe   // projectId -> unsubscribe
}

// New returns a Hub. Call SetRouter once the events.Router has been
// constructed (it in turn needs this Hub as its Emitter and Rooms).
func New(sessions *session.Registry, pres *presence.Tracker, gate *access.Gate, b bus.Bus) *Hub {
	return &Hub{
		sessions:  sessions,
		pres:      pres,
		gate:      gate,
		b:         b,
		rooms:     map[string]map[string]*conn{},
		byID:      map[string]*conn{},
		bySession: map[string]map[string]string{},
		busSubbed: map[string]bus.Unsubscribe{},
	}
}

// SetRouter completes the Hub<->Router wiring (see New).
func (h *Hub) SetRouter(r *events.Router) {
	h.router = r
}

// HandleConn takes ownership of an authenticated, upgraded WebSocket
// connection and runs its lifecycle until it closes. userID has already
// been verified against the handshake JWT. projectID may be empty; when
// set (handshake query param shortcut) the socket joins that room
// immediately, exactly as if it had sent a join_project event.
func (h *Hub) HandleConn(ctx context.Context, ws *websocket.Conn, userID, userName, projectID, teamID string) {
	c := newConn(ws, userID, userName)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.mu.Lock()
	h.byID[c.socketID] = c
	h.mu.Unlock()

	go c.writePump()

	if projectID != "" {
		h.JoinProject(ctx, c.socketID, projectID, teamID)
	}

	h.readLoop(ctx, c)

	h.disconnect(ctx, c)
}

// JoinProject implements events.Rooms: it verifies access, adds the
// socket to the project room, opens a session, and replies with the
// current participants (project_users) followed by
// join_project_success. On denial it replies join_project_error and
// leaves the socket untouched.
func (h *Hub) JoinProject(ctx context.Context, socketID, projectID, teamID string) {
	h.mu.RLock()
	c, ok := h.byID[socketID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if !h.gate.CanJoinWithTeam(c.userID, projectID, teamID) {
		h.EmitToSocket(socketID, wire.JoinProjectError, map[string]any{
			"error":     "access_denied",
			"projectId": projectID,
		})
		return
	}

	if err := h.ensureProjectSubscribed(ctx, projectID); err != nil {
		slog.Error("hub: subscribe to project failed", "project", projectID, "err", err)
	}
	if err := h.pres.EnsureSubscribed(ctx, projectID); err != nil {
		slog.Error("hub: subscribe presence failed", "project", projectID, "err", err)
	}

	sess, err := h.sessions.CreateSession(ctx, c.userID, c.userName, projectID, socketID)
	if err != nil {
		slog.Error("hub: create session failed", "err", err)
		h.EmitToSocket(socketID, wire.JoinProjectError, map[string]any{
			"error":     "internal",
			"projectId": projectID,
		})
		return
	}

	h.mu.Lock()
	if h.rooms[projectID] == nil {
		h.rooms[projectID] = map[string]*conn{}
	}
	h.rooms[projectID][socketID] = c
	if h.bySession[socketID] == nil {
		h.bySession[socketID] = map[string]string{}
	}
	h.bySession[socketID][projectID] = sess.ID
	roomClients := len(h.rooms[projectID])
	h.mu.Unlock()

	peers, err := h.sessions.GetProjectSessions(ctx, projectID)
	if err != nil {
		slog.Warn("hub: list project sessions failed", "project", projectID, "err", err)
	}
	users := make([]session.Awareness, 0, len(peers))
	for _, p := range peers {
		users = append(users, p.Awareness)
	}

	h.EmitToSocket(socketID, wire.ProjectUsers, map[string]any{"users": users})
	h.EmitToSocket(socketID, wire.JoinProjectSuccess, map[string]any{
		"projectId":   projectID,
		"userId":      c.userID,
		"timestamp":   time.Now().UnixMilli(),
		"success":     true,
		"message":     "joined project",
		"roomClients": roomClients,
	})
}

// LeaveProject implements events.Rooms: it removes the socket from the
// project room and ends the matching session. An explicit leave gets no
// reply; the USER_LEAVE broadcast is the observable effect.
func (h *Hub) LeaveProject(ctx context.Context, socketID, projectID string) {
	h.mu.Lock()
	if room, ok := h.rooms[projectID]; ok {
		delete(room, socketID)
		if len(room) == 0 {
			delete(h.rooms, projectID)
		}
	}
	sessionID := h.bySession[socketID][projectID]
	delete(h.bySession[socketID], projectID)
	h.mu.Unlock()

	if sessionID == "" {
		return
	}
	if err := h.sessions.EndSession(ctx, sessionID); err != nil {
		slog.Warn("hub: end session failed", "session", sessionID, "err", err)
	}
}

// readLoop decodes each inbound frame as an events.Envelope and hands
// it to the Event Router, attaching the socket's live sessionID for
// the target project so handlers (like SELECTION_CHANGE) that need it
// don't depend on the client echoing it back.
func (h *Hub) readLoop(ctx context.Context, c *conn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.EmitToSocket(c.socketID, wire.ErrorEvent, map[string]any{"message": "malformed event"})
			continue
		}
		if env.Payload == nil {
			env.Payload = map[string]any{}
		}
		if _, ok := env.Payload["sessionId"]; !ok {
			h.mu.RLock()
			sessionID := h.bySession[c.socketID][env.ProjectID]
			h.mu.RUnlock()
			if sessionID != "" {
				env.Payload["sessionId"] = sessionID
			}
		}

		h.router.Dispatch(ctx, c.socketID, c.userID, env)
	}
}

// disconnect tears the socket down: every room membership is dropped
// and every session the socket held is ended, as if the client had sent
// leave_project for each joined project first.
func (h *Hub) disconnect(ctx context.Context, c *conn) {
	h.mu.Lock()
	projects := make([]string, 0, len(h.bySession[c.socketID]))
	for projectID := range h.bySession[c.socketID] {
		projects = append(projects, projectID)
	}
	h.mu.Unlock()

	for _, projectID := range projects {
		h.LeaveProject(ctx, c.socketID, projectID)
	}

	h.removeConn(c)
	_ = c.ws.Close()
}

func (h *Hub) removeConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.byID, c.socketID)
	delete(h.bySession, c.socketID)
	for projectID, room := range h.rooms {
		delete(room, c.socketID)
		if len(room) == 0 {
			delete(h.rooms, projectID)
		}
	}
	c.close()
}

// ensureProjectSubscribed subscribes this instance to projectID's bus
// channel exactly once, fanning every event (local or peer-originated)
// out to this instance's local room members.
func (h *Hub) ensureProjectSubscribed(ctx context.Context, projectID string) error {
	h.mu.Lock()
	if _, ok := h.busSubbed[projectID]; ok {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	unsub, err := h.b.SubscribeToProject(ctx, projectID, func(e bus.Event) {
		h.fanOut(projectID, e)
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.busSubbed[projectID] = unsub
	h.mu.Unlock()
	return nil
}

func (h *Hub) fanOut(projectID string, e bus.Event) {
	h.mu.RLock()
	room := h.rooms[projectID]
	targets := make([]*conn, 0, len(room))
	for socketID, c := range room {
		if socketID == e.ExcludeSocketID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	frame := clientFrame{Type: e.Type, UserID: e.UserID, ProjectID: e.ProjectID, Timestamp: e.Timestamp, Payload: e.Payload}
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("hub: marshal outbound frame failed", "err", err)
		return
	}
	for _, c := range targets {
		c.send(data)
	}
}

// clientFrame is the client-facing wire envelope. It never carries
// SourceInstanceID or ExcludeSocketID, which are bus-internal.
type clientFrame struct {
	Type      string         `json:"type"`
	UserID    string         `json:"userId"`
	ProjectID string         `json:"projectId"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// ActiveProjects returns the ids of projects with at least one socket
// connected to this instance, for callers (the serve command's idle-
// session/presence sweep) that need to iterate live rooms.
func (h *Hub) ActiveProjects() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// EmitToSocket implements events.Emitter: a direct, room-bypassing
// reply to exactly one socket.
func (h *Hub) EmitToSocket(socketID, eventType string, payload map[string]any) {
	h.mu.RLock()
	c, ok := h.byID[socketID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(clientFrame{Type: eventType, Timestamp: time.Now().UnixMilli(), Payload: payload})
	if err != nil {
		slog.Error("hub: marshal socket reply failed", "err", err)
		return
	}
	c.send(data)
}
