package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB
	sendBuffer     = 256
)

// conn wraps one client WebSocket with a buffered outbound queue so a
// slow client can never block the goroutine delivering to its peers.
type conn struct {
	ws       *websocket.Conn
	socketID string
	userID   string
	userName string

	mu     sync.Mutex
	outbox chan []byte
	closed bool
}

func newConn(ws *websocket.Conn, userID, userName string) *conn {
	return &conn{
		ws:       ws,
		socketID: uuid.NewString(),
		userID:   userID,
		userName: userName,
		outbox:   make(chan []byte, sendBuffer),
	}
}

// send enqueues data for delivery, dropping it if the connection is
// already closed or the outbox is saturated (a stuck client falls
// behind rather than stalling the broadcaster).
func (c *conn) send(data []byte) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	select {
	case c.outbox <- data:
	default:
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

// writePump is the sole writer to c.ws, as required by gorilla/websocket
// (concurrent writes are not supported by the library).
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
