package notify

import (
	"log"
	"time"

	"github.com/homebase-id/odin-notify/internal/clock"
	"github.com/homebase-id/odin-notify/internal/model"
)

// missedPongs is how many ping intervals may pass without a pong before
// the connection is considered dead.
const missedPongs = 2

// startHeartbeatLocked starts pinging c. Caller must hold m.mu.
func (m *Manager) startHeartbeatLocked(c *connection) {
	c.heartbeat = m.options.Clock.NewTicker(m.options.PingInterval)
	go m.heartbeatLoop(c, c.heartbeat)
}

func (m *Manager) heartbeatLoop(c *connection, ticker *clock.Ticker) {
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			m.beat(c, now)
		}
	}
}

func (m *Manager) beat(c *connection, now time.Time) {
	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return
	}

	silence := now.Sub(c.lastPongAt)
	if silence > missedPongs*m.options.PingInterval {
		log.Printf("%s: %s no pong for %s", m.options.LogPrefix, c.descriptor, silence)
		after := m.scheduleReconnectLocked(c, model.ErrHeartbeatTimeout, false)
		m.mu.Unlock()
		if after != nil {
			after()
		}
		return
	}
	m.mu.Unlock()

	if err := m.sendOn(c, model.NewPingCommand()); err != nil {
		log.Printf("%s: %s ping failed: %v", m.options.LogPrefix, c.descriptor, err)
	}
}
