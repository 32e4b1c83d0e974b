package graphmodel

// Operation is an append-only log entry describing one graph mutation.
// Payload is kept opaque (decoded per op-kind by internal/interpreter)
// since the wire format historically carries several shapes for the
// same logical field — see internal/interpreter's lenient decoders.
type Operation struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TimelineID string         `json:"timelineId"`
	LayerID    string         `json:"layerId"`
	Payload    map[string]any `json:"payload"`
	Timestamp  int64          `json:"timestamp"`
	UserID     string         `json:"userId,omitempty"`
	DeviceID   string         `json:"deviceId"`
	Version    int            `json:"version"`
}
