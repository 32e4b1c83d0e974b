package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricProjectQueueDepth  = "collab.project.queue.depth"
	metricActiveSessions     = "collab.sessions.active"
	metricPresenceEntries    = "collab.presence.entries"
	metricBusPublishDuration = "collab.bus.publish.duration.seconds"

	attrProjectID = "project_id"
)

// CollabMetrics holds the instruments specific to the collaboration
// domain: per-project queue depth (back-pressure signal), active session
// count, live presence entry count, and bus publish latency.
type CollabMetrics struct {
	queueDepth      metric.Int64UpDownCounter
	activeSessions  metric.Int64UpDownCounter
	presenceEntries metric.Int64UpDownCounter
	busPublish      metric.Float64Histogram
}

// NewCollabMetrics creates the collaboration-domain instruments from mt.
func NewCollabMetrics(mt metric.Meter) (*CollabMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &CollabMetrics{
		queueDepth:      b.upDownCounter(metricProjectQueueDepth, "Pending operations queued per project", "{operation}"),
		activeSessions:  b.upDownCounter(metricActiveSessions, "Currently registered collaboration sessions", "{session}"),
		presenceEntries: b.upDownCounter(metricPresenceEntries, "Live per-layer presence entries", "{entry}"),
		busPublish:      b.histogram(metricBusPublishDuration, "Coordination bus publish latency", "s"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// SetQueueDepth adjusts the queue-depth gauge for projectID by delta
// (positive on enqueue, negative on dequeue).
func (cm *CollabMetrics) SetQueueDepth(ctx context.Context, projectID string, delta int64) {
	cm.queueDepth.Add(ctx, delta, metric.WithAttributes(attribute.String(attrProjectID, projectID)))
}

// SessionOpened increments the active-session gauge.
func (cm *CollabMetrics) SessionOpened(ctx context.Context) {
	cm.activeSessions.Add(ctx, 1)
}

// SessionClosed decrements the active-session gauge.
func (cm *CollabMetrics) SessionClosed(ctx context.Context) {
	cm.activeSessions.Add(ctx, -1)
}

// PresenceEntryAdded increments the presence-entry gauge.
func (cm *CollabMetrics) PresenceEntryAdded(ctx context.Context) {
	cm.presenceEntries.Add(ctx, 1)
}

// PresenceEntryRemoved decrements the presence-entry gauge.
func (cm *CollabMetrics) PresenceEntryRemoved(ctx context.Context) {
	cm.presenceEntries.Add(ctx, -1)
}

// RecordBusPublish records how long a single bus publish call took.
func (cm *CollabMetrics) RecordBusPublish(ctx context.Context, seconds float64) {
	cm.busPublish.Record(ctx, seconds)
}
