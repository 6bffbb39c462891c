package notify

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homebase-id/odin-notify/internal/clock"
)

// connection is one physical socket and the state scoped to it. A
// connection is never reused: reconnecting creates a new one.
type connection struct {
	id         uint64
	socket     Socket
	endpoint   *Endpoint
	descriptor string

	// guarded by Manager.mu
	lastPongAt time.Time
	heartbeat  *clock.Ticker

	handshaked atomic.Bool
	closing    atomic.Bool

	writeMu   sync.Mutex
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

func newConnection(id uint64, socket Socket, endpoint *Endpoint) *connection {
	return &connection{
		id:         id,
		socket:     socket,
		endpoint:   endpoint,
		descriptor: fmt.Sprintf("[%d]<%s>", id, endpoint.URL),
		done:       make(chan struct{}),
	}
}

// write sends one text frame. gorilla/websocket allows a single
// concurrent writer, so writes are serialized here.
func (c *connection) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.socket.WriteMessage(websocket.TextMessage, frame)
}

// stopHeartbeat stops the ticker and releases the heartbeat goroutine.
// Caller must hold Manager.mu.
func (c *connection) stopHeartbeat() {
	c.stopOnce.Do(func() {
		if c.heartbeat != nil {
			c.heartbeat.Stop()
		}
		close(c.done)
	})
}

// close sends a normal closure frame and closes the socket.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		c.writeMu.Lock()
		c.socket.SetWriteDeadline(time.Now().Add(time.Second))
		c.socket.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Normal Disconnect"),
		)
		c.writeMu.Unlock()

		c.socket.Close()
	})
}
