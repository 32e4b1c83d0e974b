// Package presence tracks per-layer cursors (selections travel through
// internal/session awareness instead):
// ephemeral LayerPresence records with TTL eviction and a stable
// color assignment per user.
package presence

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// palette is the fixed stable-color set cursors are drawn with.
var palette = [15]string{
	"#F44336", "#E91E63", "#9C27B0", "#673AB7", "#3F51B5",
	"#2196F3", "#03A9F4", "#00BCD4", "#009688", "#4CAF50",
	"#8BC34A", "#CDDC39", "#FFC107", "#FF9800", "#FF5722",
}

// Cursor is the {x,y,timestamp} point carried by a LayerPresence.
type Cursor struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
}

// LayerPresence is one user's ephemeral cursor state, keyed by
// (projectId, timelineId, layerId, userId).
type LayerPresence struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
	Cursor    Cursor `json:"cursor"`
	LastSeen  int64  `json:"lastSeen"`
	SessionID string `json:"sessionId"`
}

// layerKey formats the composite per-layer bucket key.
func layerKey(projectID, timelineID, layerID string) string {
	return projectID + ":" + timelineID + ":" + layerID
}

// colorAssigner memoizes a stable palette color per user id.
type colorAssigner struct {
	mu     sync.Mutex
	byUser map[string]string
}

func newColorAssigner() *colorAssigner {
	return &colorAssigner{byUser: map[string]string{}}
}

func (c *colorAssigner) colorFor(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if color, ok := c.byUser[userID]; ok {
		return color
	}
	color := palette[hashUser(userID)%uint64(len(palette))]
	c.byUser[userID] = color
	return color
}

func hashUser(userID string) uint64 {
	sum := sha256.Sum256([]byte(userID))
	return binary.BigEndian.Uint64(sum[:8])
}
