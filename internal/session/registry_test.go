package session

import (
	"context"
	"testing"
	"time"

	"github.com/sumatoshi-tech/collabgraph/internal/bus"
)

func TestCreateSessionEvictsExistingSessionForSameUser(t *testing.T) {
	b := bus.NewMemory(time.Minute)
	r := New(b, time.Minute)
	ctx := context.Background()

	first, err := r.CreateSession(ctx, "u1", "Alice", "p1", "socket-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := r.CreateSession(ctx, "u1", "Alice", "p1", "socket-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("expected a new session id for the new socket")
	}

	sessions, err := r.GetProjectSessions(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("want exactly one live session per user per project, got %d: %+v", len(sessions), sessions)
	}
	if sessions[0].ID != second.ID {
		t.Fatal("expected the surviving session to be the newest one")
	}
}

func TestCreateSessionIsIdempotentForTheSameSocket(t *testing.T) {
	b := bus.NewMemory(time.Minute)
	r := New(b, time.Minute)
	ctx := context.Background()

	first, err := r.CreateSession(ctx, "u1", "Alice", "p1", "socket-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.CreateSession(ctx, "u1", "Alice", "p1", "socket-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != second.ID {
		t.Fatal("want the same session returned for a repeat call with the same socket id")
	}
}

func TestEndSessionRemovesItFromProjectSessions(t *testing.T) {
	b := bus.NewMemory(time.Minute)
	r := New(b, time.Minute)
	ctx := context.Background()

	s, err := r.CreateSession(ctx, "u1", "Alice", "p1", "socket-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.EndSession(ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessions, err := r.GetProjectSessions(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("want no sessions left after EndSession, got %+v", sessions)
	}

	if _, ok, _ := r.GetSessionBySocketID(ctx, "socket-a"); ok {
		t.Fatal("want the socket mapping removed after EndSession")
	}
}

func TestUpdateAwarenessMergesPatchFields(t *testing.T) {
	b := bus.NewMemory(time.Minute)
	r := New(b, time.Minute)
	ctx := context.Background()

	s, err := r.CreateSession(ctx, "u1", "Alice", "p1", "socket-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := r.UpdateAwareness(ctx, s.ID, map[string]any{
		"cursor": map[string]any{"x": 1.0, "y": 2.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Awareness.Cursor["x"] != 1.0 {
		t.Fatalf("want cursor merged into awareness, got %+v", updated.Awareness)
	}
	if updated.Awareness.UserName != "Alice" {
		t.Fatal("UpdateAwareness should only merge patched fields, not clobber existing ones")
	}
}

func TestUpdateAwarenessReturnsNotFoundForUnknownSession(t *testing.T) {
	b := bus.NewMemory(time.Minute)
	r := New(b, time.Minute)

	_, err := r.UpdateAwareness(context.Background(), "does-not-exist", map[string]any{})
	if err != ErrSessionNotFound {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestCleanupInactiveSessionsEndsOnlyStaleSessions(t *testing.T) {
	b := bus.NewMemory(time.Minute)
	now := time.Unix(1_000_000, 0)
	r := New(b, time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	stale, err := r.CreateSession(ctx, "stale-user", "Stale", "p1", "socket-stale")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(10 * time.Minute)
	if _, err := r.CreateSession(ctx, "fresh-user", "Fresh", "p1", "socket-fresh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.CleanupInactiveSessions(ctx, "p1", 5*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessions, err := r.GetProjectSessions(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].UserID != "fresh-user" {
		t.Fatalf("want only the fresh session to survive cleanup, got %+v", sessions)
	}
	if _, ok, _ := r.GetSessionBySocketID(ctx, "socket-stale"); ok {
		t.Fatalf("stale session %s should have been ended", stale.ID)
	}
}
