// Package serializer turns concurrent client submissions into a
// strictly ordered per-project pipeline: it gates on the client's
// last-known version, applies the batch through internal/interpreter,
// commits it atomically through internal/store, and broadcasts the
// result through internal/bus.
package serializer

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumatoshi-tech/collabgraph/internal/access"
	"github.com/sumatoshi-tech/collabgraph/internal/bus"
	"github.com/sumatoshi-tech/collabgraph/internal/graphmodel"
	"github.com/sumatoshi-tech/collabgraph/internal/interpreter"
	"github.com/sumatoshi-tech/collabgraph/internal/observability"
	"github.com/sumatoshi-tech/collabgraph/internal/store"
	"github.com/sumatoshi-tech/collabgraph/internal/wire"
)

// ErrAccessDenied is returned when the access gate rejects the submitter.
var ErrAccessDenied = errors.New("serializer: access denied")

// ErrProjectBusy is returned when a project's queue exceeds its
// configured high watermark.
var ErrProjectBusy = errors.New("serializer: project_busy")

// ErrShuttingDown is returned for batches submitted after Shutdown.
var ErrShuttingDown = errors.New("serializer: shutting down")

// Batch is a group of operations submitted, committed, and versioned
// as one unit.
type Batch struct {
	ProjectID       string
	Operations      []graphmodel.Operation
	LastSyncVersion int
	DeviceID        string
}

// SyncResult reports a batch's outcome to the submitting client.
type SyncResult struct {
	Success            bool
	SyncVersion        int
	AppliedOperationIDs []string
	Conflicts          []graphmodel.Operation
	ServerOperations   []graphmodel.Operation
}

// Clock lets tests control "now" deterministically.
type Clock func() time.Time

// Config holds the commit-retry and back-pressure knobs.
type Config struct {
	MaxRetries         int
	InitialBackoff     time.Duration
	QueueHighWatermark int
}

// Serializer owns one logical FIFO per project.
type Serializer struct {
	store   store.Store
	gate    *access.Gate
	b       bus.Bus
	cfg     Config
	now     Clock
	metrics *observability.CollabMetrics

	mu       sync.Mutex
	queues   map[string]*projectQueue
	inflight sync.WaitGroup
	closed   bool
}

type projectQueue struct {
	jobs chan job
}

type job struct {
	userID          string
	excludeSocketID string
	batch           Batch
	result          chan<- jobOutcome
}

type jobOutcome struct {
	res SyncResult
	err error
}

// New returns a Serializer; one worker goroutine is spawned lazily per
// project the first time a batch targets it.
func New(st store.Store, gate *access.Gate, b bus.Bus, cfg Config) *Serializer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 50 * time.Millisecond
	}
	return &Serializer{
		store:  st,
		gate:   gate,
		b:      b,
		cfg:    cfg,
		now:    time.Now,
		queues: map[string]*projectQueue{},
	}
}

// WithClock overrides the time source (tests).
func (s *Serializer) WithClock(c Clock) *Serializer {
	s.now = c
	return s
}

// WithMetrics attaches the collaboration-domain instruments; nil by
// default so Serializer works unmodified in tests that don't construct them.
func (s *Serializer) WithMetrics(m *observability.CollabMetrics) *Serializer {
	s.metrics = m
	return s
}

// ProcessBatch enqueues the batch on projectID's logical FIFO and
// blocks until that batch (and nothing after it) has been applied.
func (s *Serializer) ProcessBatch(ctx context.Context, userID, excludeSocketID string, batch Batch) (SyncResult, error) {
	q, err := s.queueFor(batch.ProjectID)
	if err != nil {
		return SyncResult{}, err
	}

	if s.cfg.QueueHighWatermark > 0 && len(q.jobs) >= s.cfg.QueueHighWatermark {
		s.inflight.Done()
		return SyncResult{}, ErrProjectBusy
	}

	result := make(chan jobOutcome, 1)
	select {
	case q.jobs <- job{userID: userID, excludeSocketID: excludeSocketID, batch: batch, result: result}:
		if s.metrics != nil {
			s.metrics.SetQueueDepth(ctx, batch.ProjectID, 1)
		}
	case <-ctx.Done():
		s.inflight.Done()
		return SyncResult{}, ctx.Err()
	}

	select {
	case out := <-result:
		return out.res, out.err
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	}
}

// queueFor registers the caller as an in-flight submission (released by
// the worker, or by ProcessBatch itself on the rejection paths) and
// returns projectID's queue, spawning its worker on first use.
func (s *Serializer) queueFor(projectID string) (*projectQueue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrShuttingDown
	}
	s.inflight.Add(1)

	if q, ok := s.queues[projectID]; ok {
		return q, nil
	}

	q := &projectQueue{jobs: make(chan job, 4096)}
	s.queues[projectID] = q
	go s.worker(projectID, q)
	return q, nil
}

// Shutdown stops accepting new batches and blocks until every batch
// already submitted has finished (committed or failed), so an orderly
// exit never abandons work a client was told is queued.
func (s *Serializer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker is the single-threaded dispatcher for one project: it suspends
// between jobs on the channel receive and processes at most one batch
// at a time, which is what gives the project its total commit order. A
// panic or error in one job must never stop the worker from picking up
// the next, so runOne recovers internally.
func (s *Serializer) worker(projectID string, q *projectQueue) {
	for j := range q.jobs {
		out := s.runOne(j.userID, j.excludeSocketID, j.batch)
		if s.metrics != nil {
			s.metrics.SetQueueDepth(context.Background(), projectID, -1)
		}
		j.result <- out
		s.inflight.Done()
	}
}

func (s *Serializer) runOne(userID, excludeSocketID string, batch Batch) (out jobOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("serializer: recovered from panic processing batch", "project", batch.ProjectID, "panic", r)
			out = jobOutcome{res: SyncResult{Success: false}}
		}
	}()

	ctx := context.Background()

	if !s.gate.CanEdit(userID, batch.ProjectID) {
		return jobOutcome{res: SyncResult{Success: false}, err: ErrAccessDenied}
	}

	snapshot, currentVersion, err := s.store.GetProjectSnapshot(ctx, batch.ProjectID)
	if err != nil {
		return jobOutcome{res: SyncResult{Success: false}, err: err}
	}

	if batch.LastSyncVersion < currentVersion {
		serverOps, err := s.store.GetOperationsAfterVersion(ctx, batch.ProjectID, batch.LastSyncVersion)
		if err != nil {
			return jobOutcome{res: SyncResult{Success: false}, err: err}
		}
		return jobOutcome{res: SyncResult{
			Success:          false,
			SyncVersion:      currentVersion,
			Conflicts:        batch.Operations,
			ServerOperations: serverOps,
		}}
	}

	now := s.now()
	newVersion := currentVersion + 1

	taggedOps := make([]graphmodel.Operation, len(batch.Operations))
	appliedIDs := make([]string, len(batch.Operations))
	for i, op := range batch.Operations {
		if op.ID == "" {
			op.ID = uuid.NewString()
		}
		op.UserID = userID
		op.DeviceID = batch.DeviceID
		op.Version = newVersion
		if op.Timestamp == 0 {
			op.Timestamp = now.UnixMilli()
		}
		taggedOps[i] = op
		appliedIDs[i] = op.ID
	}

	newSnapshot := interpreter.Apply(snapshot, taggedOps, now)

	if err := s.commitWithRetry(ctx, batch.ProjectID, newSnapshot, taggedOps, newVersion); err != nil {
		return jobOutcome{res: SyncResult{Success: false}, err: err}
	}

	s.broadcast(ctx, batch.ProjectID, taggedOps, excludeSocketID)

	return jobOutcome{res: SyncResult{
		Success:             true,
		SyncVersion:         newVersion,
		AppliedOperationIDs: appliedIDs,
	}}
}

// commitWithRetry makes up to cfg.MaxRetries attempts with exponential
// backoff + jitter on a transient storage conflict.
func (s *Serializer) commitWithRetry(ctx context.Context, projectID string, snapshot graphmodel.Snapshot, ops []graphmodel.Operation, version int) error {
	backoff := s.cfg.InitialBackoff

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		err := s.store.SaveChangesInTransaction(ctx, projectID, snapshot, ops, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrTransient) {
			return err
		}
		lastErr = err

		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return lastErr
}

// broadcast publishes one OPERATION_BROADCAST per committed op,
// excluding the submitting socket, and also appends each op to the
// durable cross-instance stream.
func (s *Serializer) broadcast(ctx context.Context, projectID string, ops []graphmodel.Operation, excludeSocketID string) {
	for _, op := range ops {
		if err := s.b.AppendOperation(ctx, projectID, op); err != nil {
			slog.Warn("serializer: failed to append operation to stream", "err", err)
		}

		event := bus.Event{
			Type:            wire.OperationBroadcast,
			ProjectID:       projectID,
			UserID:          op.UserID,
			Timestamp:       op.Timestamp,
			ExcludeSocketID: excludeSocketID,
			Payload: map[string]any{
				"operation": op,
			},
		}
		publishStart := s.now()
		err := s.b.PublishToProject(ctx, projectID, event)
		if s.metrics != nil {
			s.metrics.RecordBusPublish(ctx, s.now().Sub(publishStart).Seconds())
		}
		if err != nil {
			slog.Warn("serializer: failed to publish operation broadcast", "err", err)
		}
	}
}

// QueueDepth returns the current pending-job count for projectID.
func (s *Serializer) QueueDepth(projectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[projectID]
	if !ok {
		return 0
	}
	return len(q.jobs)
}
