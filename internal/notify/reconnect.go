package notify

import (
	"context"
	"log"
	"time"

	"github.com/homebase-id/odin-notify/internal/model"
)

// connect runs one connect attempt: pre-connect auth, dial, then the
// establish-connection command. It is only started from StateConnecting.
func (m *Manager) connect(ctx context.Context) {
	m.mu.Lock()
	if m.conn != nil {
		c := m.conn
		ready := m.resumeLocked(c)
		m.mu.Unlock()
		log.Printf("%s: %s: %v", m.options.LogPrefix, c.descriptor, model.ErrAlreadyConnected)
		if ready != nil {
			ready.settle(nil)
		}
		return
	}
	m.mu.Unlock()

	if !m.options.Online.Online() {
		m.connectFailed(ctx, model.ErrOffline)
		return
	}

	endpoint, err := m.options.Auth.PreConnect(ctx)
	if err != nil {
		m.connectFailed(ctx, err)
		return
	}

	socket, err := m.options.Dialer.Dial(ctx, endpoint.URL, endpoint.Header, endpoint.Jar)
	if err != nil {
		m.connectFailed(ctx, err)
		return
	}

	c := newConnection(m.connIDGen.Add(1), socket, endpoint)

	m.mu.Lock()
	if ctx.Err() != nil || m.conn != nil || m.state != model.StateConnecting {
		m.mu.Unlock()
		m.logDebug("%s discarding socket opened for a stale attempt", c.descriptor)
		c.close()
		return
	}
	m.conn = c
	m.state = model.StateAwaitingHandshake
	req := &model.EstablishConnectionRequest{
		Drives:     append([]model.TargetDrive(nil), m.drives...),
		WaitTimeMs: m.options.WaitTimeMs,
		BatchSize:  m.options.BatchSize,
	}
	m.mu.Unlock()

	log.Printf("%s: %s socket open, awaiting handshake", m.options.LogPrefix, c.descriptor)

	go m.readLoop(c)

	cmd, err := model.NewEstablishConnectionCommand(req)
	if err == nil {
		err = m.sendOn(c, cmd)
	}
	if err != nil {
		log.Printf("%s: %s establish connection request failed: %v", m.options.LogPrefix, c.descriptor, err)
		// the read loop observes the close and schedules a reconnect
		c.socket.Close()
	}
}

// resumeLocked puts a Manager that entered StateConnecting while c was
// still current back into the state c is in. It returns the readiness to
// settle when c is already live.
func (m *Manager) resumeLocked(c *connection) *readiness {
	if m.state != model.StateConnecting {
		return nil
	}
	if !c.handshaked.Load() {
		m.state = model.StateAwaitingHandshake
		return nil
	}
	m.state = model.StateLive
	ready := m.ready
	m.ready = nil
	return ready
}

// connectFailed handles a connect attempt that never produced a socket.
func (m *Manager) connectFailed(ctx context.Context, cause error) {
	m.mu.Lock()
	if ctx.Err() != nil || m.state != model.StateConnecting {
		m.mu.Unlock()
		return
	}

	if !m.options.Online.Online() {
		ready := m.abandonLocked()
		m.mu.Unlock()

		log.Printf("%s: offline, abandoning connect: %v", m.options.LogPrefix, cause)
		if ready != nil {
			ready.settle(model.ErrOffline)
		}
		return
	}

	log.Printf("%s: connect failed: %v", m.options.LogPrefix, cause)
	after := m.scheduleReconnectLocked(nil, cause, true)
	m.mu.Unlock()
	if after != nil {
		after()
	}
}

// scheduleReconnectLocked moves the Manager to StateReconnecting and
// returns the work to run once m.mu is released. It returns nil when the
// trigger is coalesced into a pending reconnect, comes from a connection
// that is no longer current or arrives after teardown.
//
// from is the connection that triggered the reconnect, nil for triggers
// not tied to a socket. fromConnect is set by a failed connect attempt,
// the only trigger allowed while StateConnecting.
func (m *Manager) scheduleReconnectLocked(from *connection, cause error, fromConnect bool) func() {
	switch m.state {
	case model.StateDisconnected, model.StateDisconnecting:
		return nil
	case model.StateReconnecting:
		m.logDebug("reconnect already pending, coalescing: %v", cause)
		return nil
	case model.StateConnecting:
		if !fromConnect {
			m.logDebug("connect in flight, coalescing: %v", cause)
			return nil
		}
	case model.StateAwaitingHandshake, model.StateLive:
		if from != nil && from != m.conn {
			return nil
		}
	}

	c := m.conn
	m.conn = nil
	if c != nil {
		c.stopHeartbeat()
	}

	wasLive := m.state == model.StateLive
	if wasLive {
		m.notifiedDisconnect = true
	}
	if m.ready == nil {
		m.ready = newReadiness()
	}

	m.attempt++
	delay := m.options.Backoff.Delay(m.attempt)
	m.state = model.StateReconnecting
	ctx := m.lifeCtx

	log.Printf("%s: reconnecting in %s (attempt %d): %v", m.options.LogPrefix, delay, m.attempt, cause)

	return func() {
		if c != nil {
			c.close()
		}
		go m.waitAndReconnect(ctx, delay)
		if wasLive {
			m.hooks.push(m.registry.Disconnected)
		}
	}
}

// waitAndReconnect sleeps for the backoff delay and starts the next
// connect attempt, unless the runtime went offline in the meantime.
func (m *Manager) waitAndReconnect(ctx context.Context, delay time.Duration) {
	select {
	case <-m.options.Clock.After(delay):
	case <-ctx.Done():
		return
	}

	m.mu.Lock()
	if ctx.Err() != nil || m.state != model.StateReconnecting {
		m.mu.Unlock()
		return
	}

	if !m.options.Online.Online() {
		ready := m.abandonLocked()
		m.mu.Unlock()

		log.Printf("%s: offline, abandoning reconnect", m.options.LogPrefix)
		if ready != nil {
			ready.settle(model.ErrOffline)
		}
		return
	}

	m.state = model.StateConnecting
	m.mu.Unlock()

	m.connect(ctx)
}
