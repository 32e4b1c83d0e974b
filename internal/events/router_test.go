package events

import (
	"context"
	"testing"
	"time"

	"github.com/sumatoshi-tech/collabgraph/internal/access"
	"github.com/sumatoshi-tech/collabgraph/internal/authz"
	"github.com/sumatoshi-tech/collabgraph/internal/bus"
	"github.com/sumatoshi-tech/collabgraph/internal/presence"
	"github.com/sumatoshi-tech/collabgraph/internal/serializer"
	"github.com/sumatoshi-tech/collabgraph/internal/session"
	"github.com/sumatoshi-tech/collabgraph/internal/store"
	"github.com/sumatoshi-tech/collabgraph/internal/wire"
)

// fakeEmitter records every socket-scoped reply for assertions.
type fakeEmitter struct {
	replies []reply
}

type reply struct {
	socketID  string
	eventType string
	payload   map[string]any
}

func (f *fakeEmitter) EmitToSocket(socketID, eventType string, payload map[string]any) {
	f.replies = append(f.replies, reply{socketID, eventType, payload})
}

// fakeRooms records membership calls the router delegates to the hub.
type fakeRooms struct {
	joins  []string // socketID/projectID/teamID
	leaves []string // socketID/projectID
}

func (f *fakeRooms) JoinProject(_ context.Context, socketID, projectID, teamID string) {
	f.joins = append(f.joins, socketID+"/"+projectID+"/"+teamID)
}

func (f *fakeRooms) LeaveProject(_ context.Context, socketID, projectID string) {
	f.leaves = append(f.leaves, socketID+"/"+projectID)
}

func newTestRouter(t *testing.T) (*Router, *fakeEmitter, bus.Bus, *fakeRooms) {
	t.Helper()

	dir := authz.NewMemoryDirectory()
	dir.PutProject(authz.Project{ID: "p1", CreatorID: "u1"})
	gate := access.New(dir)

	b := bus.NewMemory(time.Minute)
	sessions := session.New(b, time.Minute)
	pres := presence.New(b, time.Minute)
	if err := pres.EnsureSubscribed(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ser := serializer.New(store.NewMemory(), gate, b, serializer.Config{})

	em := &fakeEmitter{}
	rooms := &fakeRooms{}
	return New(sessions, pres, ser, b, em, rooms), em, b, rooms
}

func TestDispatchRejectsMalformedEnvelope(t *testing.T) {
	r, em, _, _ := newTestRouter(t)

	r.Dispatch(context.Background(), "socket1", "u1", Envelope{})

	if len(em.replies) != 1 || em.replies[0].eventType != wire.ErrorEvent {
		t.Fatalf("want one error reply for a malformed envelope, got %+v", em.replies)
	}
}

func TestDispatchRejectsUnknownEventType(t *testing.T) {
	r, em, _, _ := newTestRouter(t)

	r.Dispatch(context.Background(), "socket1", "u1", Envelope{
		Type: "NOT_A_REAL_EVENT", ProjectID: "p1", Timestamp: 1700000000000, Payload: map[string]any{},
	})

	if len(em.replies) != 1 || em.replies[0].eventType != wire.ErrorEvent {
		t.Fatalf("want one error reply for an unknown event type, got %+v", em.replies)
	}
}

func TestDispatchOverridesClientSuppliedUserID(t *testing.T) {
	r, _, b, _ := newTestRouter(t)

	var seenUserID string
	unsub, err := b.SubscribeToProject(context.Background(), "p1", func(e bus.Event) {
		if e.Type == wire.LayerCursorEnter {
			seenUserID = e.UserID
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsub()

	r.Dispatch(context.Background(), "socket1", "authenticated-user", Envelope{
		Type:      wire.LayerCursorUpdate,
		ProjectID: "p1",
		UserID:    "forged-user",
		Timestamp: 1700000000000,
		Payload:   map[string]any{"timelineId": "t1", "layerId": "l1"},
	})

	if seenUserID != "authenticated-user" {
		t.Fatalf("want the authenticated identity substituted for a forged userId, got %q", seenUserID)
	}
}

func TestDispatchRoutesJoinAndLeaveProjectToTheHub(t *testing.T) {
	r, em, _, rooms := newTestRouter(t)
	ctx := context.Background()

	r.Dispatch(ctx, "socket1", "u1", Envelope{
		Type:      wire.JoinProject,
		ProjectID: "p1",
		Timestamp: 1700000000000,
		Payload:   map[string]any{"projectId": "p1", "teamId": "team1"},
	})
	r.Dispatch(ctx, "socket1", "u1", Envelope{
		Type:      wire.LeaveProject,
		ProjectID: "p1",
		Timestamp: 1700000000000,
		Payload:   map[string]any{"projectId": "p1"},
	})

	if len(rooms.joins) != 1 || rooms.joins[0] != "socket1/p1/team1" {
		t.Fatalf("want join_project delegated with the payload teamId, got %v", rooms.joins)
	}
	if len(rooms.leaves) != 1 || rooms.leaves[0] != "socket1/p1" {
		t.Fatalf("want leave_project delegated, got %v", rooms.leaves)
	}
	if len(em.replies) != 0 {
		t.Fatalf("membership events reply through the hub, not the router, got %+v", em.replies)
	}
}

func TestDispatchTranslatesLegacyCursorMove(t *testing.T) {
	r, em, b, _ := newTestRouter(t)

	var sawType string
	unsub, err := b.SubscribeToProject(context.Background(), "p1", func(e bus.Event) {
		sawType = e.Type
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsub()

	r.Dispatch(context.Background(), "socket1", "u1", Envelope{
		Type:      wire.CursorMove,
		ProjectID: "p1",
		Timestamp: 1700000000000,
		Payload:   map[string]any{"timelineId": "t1", "layerId": "l1"},
	})

	if len(em.replies) != 0 {
		t.Fatalf("a legacy CURSOR_MOVE must not be rejected, got %+v", em.replies)
	}
	if sawType != wire.LayerCursorEnter && sawType != wire.LayerCursorUpdate {
		t.Fatalf("want CURSOR_MOVE routed through the layer-cursor path, got %q", sawType)
	}
}

func TestDispatchOperationBroadcastReportsResultToSubmitter(t *testing.T) {
	r, em, _, _ := newTestRouter(t)

	r.Dispatch(context.Background(), "socket1", "u1", Envelope{
		Type:      wire.OperationBroadcast,
		ProjectID: "p1",
		Timestamp: 1700000000000,
		Payload: map[string]any{
			"lastSyncVersion": float64(0),
			"operations": []any{
				map[string]any{"type": "CREATE_NODE", "timelineId": "t1", "layerId": "root", "payload": map[string]any{"nodeId": "n1"}},
			},
		},
	})

	if len(em.replies) != 1 || em.replies[0].eventType != wire.OperationResult {
		t.Fatalf("want one operation_result reply, got %+v", em.replies)
	}
	if em.replies[0].payload["success"] != true {
		t.Fatalf("want success=true for a valid batch, got %+v", em.replies[0].payload)
	}
}

func TestDecodeBatchRejectsUndecodableOperations(t *testing.T) {
	_, err := decodeBatch(Envelope{
		ProjectID: "p1",
		Payload: map[string]any{
			"operations": []any{"not-a-map"},
		},
	})
	if err == nil {
		t.Fatal("want an error when every operation in the batch fails to decode")
	}
}
