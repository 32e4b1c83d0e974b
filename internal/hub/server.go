package hub

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sumatoshi-tech/collabgraph/internal/access"
)

const handshakeTimeout = 10 * time.Second

// Server adapts Hub to net/http: it authenticates the handshake,
// applies the access gate, upgrades the connection, and hands it off
// to Hub.HandleConn.
type Server struct {
	hub            *Hub
	auth           *Authenticator
	gate           *access.Gate
	frontendOrigin string
	upgrader       websocket.Upgrader
}

// NewServer returns a Server for hub, verifying handshakes with auth
// and gating joins with gate. frontendOrigin, if non-empty, is the only
// Origin header accepted; empty accepts any origin (development).
func NewServer(h *Hub, auth *Authenticator, gate *access.Gate, frontendOrigin string) *Server {
	s := &Server{hub: h, auth: auth, gate: gate, frontendOrigin: frontendOrigin}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.frontendOrigin == "" {
		return true
	}
	return r.Header.Get("Origin") == s.frontendOrigin
}

// ServeHTTP implements the WebSocket upgrade endpoint. The handshake
// JWT arrives either as the token query parameter or as a bearer
// Authorization header. projectId/teamId query parameters are an
// optional shortcut that joins the socket to that room immediately;
// without them the client joins rooms by sending join_project events.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := handshakeToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	claims, err := s.auth.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	projectID := r.URL.Query().Get("projectId")
	teamID := r.URL.Query().Get("teamId")
	if projectID != "" && !s.gate.CanJoinWithTeam(claims.UserID, projectID, teamID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("hub: websocket upgrade failed", "err", err)
		return
	}

	s.hub.HandleConn(context.Background(), ws, claims.UserID, claims.UserName, projectID, teamID)
}

func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return bearer
	}
	return ""
}
