package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
)

const (
	projectChannelPrefix = "collab:project:"
	sessionKeyPrefix     = "collab:session:"
	projectSetPrefix     = "collab:sessions:project:"
	userSetPrefix        = "collab:sessions:user:"
	socketKeyPrefix      = "collab:socket:"
	opsStreamPrefix      = "collab:ops:"
)

// Redis is the shared-backend Bus implementation: Redis
// pub/sub for cross-instance fan-out, TTL'd string keys for session/
// socket KV, and a capped Stream per project as the durable operation
// log for cross-instance audit/recovery.
type Redis struct {
	client       *redis.Client
	instance     string
	streamMaxLen int64

	mu   sync.Mutex
	subs map[string]*projectSub // projectID -> subscription
}

type projectSub struct {
	pubsub   *redis.PubSub
	handlers map[string]Handler
	cancel   func()
}

// NewRedis wraps an already-constructed *redis.Client.
func NewRedis(client *redis.Client, streamMaxLen int64) *Redis {
	return &Redis{
		client:       client,
		instance:     uuid.NewString(),
		streamMaxLen: streamMaxLen,
		subs:         map[string]*projectSub{},
	}
}

func (r *Redis) Instance() string { return r.instance }

func (r *Redis) PublishToProject(ctx context.Context, projectID string, event Event) error {
	event.SourceInstanceID = r.instance

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("bus: encode event: %w", err)
	}
	if err := r.client.Publish(ctx, projectChannelPrefix+projectID, raw).Err(); err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}

	// Deliver locally as well: Redis pub/sub does not guarantee a
	// publisher also receives its own message promptly, and the local
	// delivery path must not depend on round-tripping through Redis.
	r.mu.Lock()
	sub, ok := r.subs[projectID]
	var handlers []Handler
	if ok {
		handlers = make([]Handler, 0, len(sub.handlers))
		for _, h := range sub.handlers {
			handlers = append(handlers, h)
		}
	}
	r.mu.Unlock()
	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (r *Redis) SubscribeToProject(ctx context.Context, projectID string, handler Handler) (Unsubscribe, error) {
	r.mu.Lock()
	sub, ok := r.subs[projectID]
	if !ok {
		pubsub := r.client.Subscribe(ctx, projectChannelPrefix+projectID)
		subCtx, cancel := context.WithCancel(ctx)
		sub = &projectSub{pubsub: pubsub, handlers: map[string]Handler{}, cancel: cancel}
		r.subs[projectID] = sub
		go r.pump(subCtx, projectID, pubsub)
	}
	id := uuid.NewString()
	sub.handlers[id] = handler
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		s, ok := r.subs[projectID]
		if !ok {
			return
		}
		delete(s.handlers, id)
		if len(s.handlers) == 0 {
			s.cancel()
			_ = s.pubsub.Close()
			delete(r.subs, projectID)
		}
	}, nil
}

// pump reads messages off pubsub and fans them out to this instance's
// registered handlers for projectID, skipping events this instance
// itself published since PublishToProject already delivered those
// locally.
func (r *Redis) pump(ctx context.Context, projectID string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("bus: failed to decode event", "err", err)
				continue
			}
			if event.SourceInstanceID == r.instance {
				continue
			}

			r.mu.Lock()
			sub, ok := r.subs[projectID]
			var handlers []Handler
			if ok {
				handlers = make([]Handler, 0, len(sub.handlers))
				for _, h := range sub.handlers {
					handlers = append(handlers, h)
				}
			}
			r.mu.Unlock()
			for _, h := range handlers {
				h(event)
			}
		}
	}
}

func (r *Redis) SaveSession(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, data, ttl).Err()
}

func (r *Redis) GetSession(ctx context.Context, sessionID string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bus: get session: %w", err)
	}
	return data, true, nil
}

func (r *Redis) RemoveSession(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("bus: remove session: %w", err)
	}
	return nil
}

// IndexSession adds sessionID to projectID's and userID's session sets
// with ttl, refreshed on every call.
func (r *Redis) IndexSession(ctx context.Context, projectID, userID, sessionID string, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, projectSetPrefix+projectID, sessionID)
	pipe.Expire(ctx, projectSetPrefix+projectID, ttl)
	pipe.SAdd(ctx, userSetPrefix+userID, sessionID)
	pipe.Expire(ctx, userSetPrefix+userID, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("bus: index session: %w", err)
	}
	return nil
}

func (r *Redis) GetProjectSessions(ctx context.Context, projectID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, projectSetPrefix+projectID).Result()
	if err != nil {
		return nil, fmt.Errorf("bus: project sessions: %w", err)
	}
	return r.filterLive(ctx, ids), nil
}

func (r *Redis) GetUserSessions(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, userSetPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("bus: user sessions: %w", err)
	}
	return r.filterLive(ctx, ids), nil
}

// filterLive drops session ids whose TTL'd key already expired but
// whose membership in the index set has not yet been reaped.
func (r *Redis) filterLive(ctx context.Context, ids []string) []string {
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		if exists, err := r.client.Exists(ctx, sessionKeyPrefix+id).Result(); err == nil && exists == 1 {
			live = append(live, id)
		}
	}
	return live
}

func (r *Redis) SetSocketSessionMapping(ctx context.Context, socketID, sessionID string, ttl time.Duration) error {
	return r.client.Set(ctx, socketKeyPrefix+socketID, sessionID, ttl).Err()
}

func (r *Redis) GetSessionIDBySocket(ctx context.Context, socketID string) (string, bool, error) {
	id, err := r.client.Get(ctx, socketKeyPrefix+socketID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("bus: get socket mapping: %w", err)
	}
	return id, true, nil
}

func (r *Redis) RemoveSocketSessionMapping(ctx context.Context, socketID string) error {
	return r.client.Del(ctx, socketKeyPrefix+socketID).Err()
}

func (r *Redis) AppendOperation(ctx context.Context, projectID string, op graphmodel.Operation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("bus: encode operation: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: opsStreamPrefix + projectID,
		Values: map[string]any{"op": raw},
	}
	if r.streamMaxLen > 0 {
		args.MaxLen = r.streamMaxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("bus: append operation: %w", err)
	}
	return nil
}

func (r *Redis) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for id, sub := range r.subs {
		sub.cancel()
		_ = sub.pubsub.Close()
		delete(r.subs, id)
	}
	r.mu.Unlock()
	return r.client.Close()
}
