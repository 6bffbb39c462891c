package notify

import (
	"fmt"

	"github.com/homebase-id/odin-notify/internal/model"
)

// Send encrypts cmd and writes it to the current socket. Commands are
// never queued: without a socket Send fails with model.ErrNoActiveSocket.
// While the runtime is offline Send is a no-op.
func (m *Manager) Send(cmd *model.Command) error {
	if cmd == nil {
		return fmt.Errorf("%s: nil command", m.options.LogPrefix)
	}

	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()

	if c == nil {
		return fmt.Errorf("%s: %w", m.options.LogPrefix, model.ErrNoActiveSocket)
	}
	if !m.options.Online.Online() {
		m.logDebug("offline, dropping %s command", cmd.Command)
		return nil
	}
	return m.sendOn(c, cmd)
}

func (m *Manager) sendOn(c *connection, cmd *model.Command) error {
	frame, err := m.options.Codec.EncodeWrapped(cmd, c.endpoint.SharedSecret, c.endpoint.Token)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", m.options.LogPrefix, c.descriptor, err)
	}
	if err := c.write(frame); err != nil {
		return fmt.Errorf("%s: %s write failed: %w", m.options.LogPrefix, c.descriptor, err)
	}
	m.logDebug("%s sent %s", c.descriptor, cmd.Command)
	return nil
}
