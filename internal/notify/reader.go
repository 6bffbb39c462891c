package notify

import (
	"log"

	"github.com/homebase-id/odin-notify/internal/model"
)

// readLoop is the only reader of c. Frames are handled inline so
// subscribers observe them in arrival order.
func (m *Manager) readLoop(c *connection) {
	for {
		_, frame, err := c.socket.ReadMessage()
		if err != nil {
			if !c.closing.Load() {
				log.Printf("%s: %s read failed: %v", m.options.LogPrefix, c.descriptor, err)
			}
			m.closed(c, err)
			return
		}
		m.handleFrame(c, frame)
	}
}

// closed is called once per connection when its socket stops reading.
func (m *Manager) closed(c *connection, cause error) {
	m.mu.Lock()
	after := m.scheduleReconnectLocked(c, cause, false)
	m.mu.Unlock()
	if after != nil {
		after()
	}
}

func (m *Manager) handleFrame(c *connection, frame []byte) {
	if c.closing.Load() {
		return
	}

	n, err := m.options.Codec.Decode(frame, c.endpoint.SharedSecret)
	if err != nil {
		log.Printf("%s: %s dropping frame: %v", m.options.LogPrefix, c.descriptor, err)
		return
	}

	switch n.NotificationType {
	case model.NotificationTypePong:
		m.recordPong(c)
	case model.NotificationTypeDeviceHandshakeSuccess:
		if !c.handshaked.Load() {
			m.handshaked(c)
		}
	}

	if !c.handshaked.Load() {
		if n.NotificationType != model.NotificationTypePong {
			log.Printf("%s: %s ignoring %s before handshake", m.options.LogPrefix, c.descriptor, n.NotificationType)
		}
		return
	}

	m.registry.Dispatch(n)
}

func (m *Manager) handshaked(c *connection) {
	m.mu.Lock()
	if m.conn != c || m.state != model.StateAwaitingHandshake {
		m.mu.Unlock()
		return
	}

	c.handshaked.Store(true)
	c.lastPongAt = m.options.Clock.Now()
	m.attempt = 0
	m.state = model.StateLive
	m.startHeartbeatLocked(c)

	ready := m.ready
	m.ready = nil
	reconnected := m.notifiedDisconnect
	m.notifiedDisconnect = false
	m.mu.Unlock()

	log.Printf("%s: %s handshake complete", m.options.LogPrefix, c.descriptor)

	if ready != nil {
		ready.settle(nil)
	}
	if reconnected {
		m.hooks.push(m.registry.Reconnected)
	}
}

func (m *Manager) recordPong(c *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == c {
		c.lastPongAt = m.options.Clock.Now()
	}
}
