package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/homebase-id/odin-notify/internal/model"
)

// Manager owns at most one socket for its transport kind and shares it
// between all subscribers. Construct one per transport kind and pass it
// by reference.
type Manager struct {
	options   *Options
	registry  *Registry
	hooks     hookQueue
	connIDGen atomic.Uint64

	mu                 sync.Mutex
	state              model.State
	conn               *connection
	drives             []model.TargetDrive
	attempt            int
	notifiedDisconnect bool
	ready              *readiness

	// lifeCtx is cancelled on teardown so that in-flight connect and
	// backoff goroutines from before the teardown stand down.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
}

// Status is a point-in-time view of a Manager.
type Status struct {
	Transport    string              `json:"transport"`
	Remote       string              `json:"remote,omitempty"`
	State        model.State         `json:"state"`
	ConnectionID uint64              `json:"connectionId,omitempty"`
	Drives       []model.TargetDrive `json:"drives"`
	Attempt      int                 `json:"attempt"`
	Subscribers  int                 `json:"subscribers"`
	LastPongAt   *time.Time          `json:"lastPongAt,omitempty"`
}

// readiness is the single in-flight connect slot. Every Subscribe issued
// before the handshake waits on the same readiness.
type readiness struct {
	done chan struct{}
	err  error
}

func newReadiness() *readiness {
	return &readiness{done: make(chan struct{})}
}

// settle must be called exactly once, by whoever took the readiness out
// of Manager.ready.
func (r *readiness) settle(err error) {
	r.err = err
	close(r.done)
}

type teardown struct {
	conn  *connection
	ready *readiness
}

// NewManager creates a disconnected Manager.
func NewManager(opts *Options) (*Manager, error) {
	options, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		options:  options,
		registry: NewRegistry(options.LogPrefix),
		state:    model.StateDisconnected,
	}
	m.lifeCtx, m.lifeCancel = context.WithCancel(context.Background())
	return m, nil
}

// Kind returns the transport kind of the Manager's AuthStrategy.
func (m *Manager) Kind() string {
	return m.options.Auth.Kind()
}

// Subscribe registers sub for notifications on drives and blocks until
// the connection is live. The first subscriber fixes the drive set for
// the connection; later subscribers must request the same set.
//
// When ctx is done before the handshake, ctx.Err() is returned and sub
// stays registered.
func (m *Manager) Subscribe(ctx context.Context, drives []model.TargetDrive, sub Subscriber) error {
	if sub == nil {
		return fmt.Errorf("%s: nil subscriber", m.options.LogPrefix)
	}
	if !isComparable(sub) {
		return fmt.Errorf("%s: %w: %T", m.options.LogPrefix, model.ErrSubscriberNotComparable, sub)
	}
	drives = model.NormalizeDrives(drives)

	m.mu.Lock()
	if m.registry.Count() > 0 && !model.SameDrives(m.drives, drives) {
		negotiated := m.drives
		m.mu.Unlock()
		return fmt.Errorf("%s: %w: negotiated %v, requested %v",
			m.options.LogPrefix, model.ErrDriveMismatch, negotiated, drives)
	}

	idle := m.state == model.StateDisconnected || m.state == model.StateDisconnecting
	if idle && !m.options.Online.Online() {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", m.options.LogPrefix, model.ErrOffline)
	}

	if m.registry.Count() == 0 {
		m.drives = drives
	}
	if !m.registry.Add(sub) {
		m.logDebug("subscriber already registered")
	}

	if m.state == model.StateLive {
		m.mu.Unlock()
		return nil
	}

	if m.ready == nil {
		m.ready = newReadiness()
	}
	ready := m.ready
	if idle {
		m.state = model.StateConnecting
		go m.connect(m.lifeCtx)
	}
	m.mu.Unlock()

	select {
	case <-ready.done:
		return ready.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe removes sub. Removing the last subscriber tears the
// connection down.
func (m *Manager) Unsubscribe(sub Subscriber) {
	if sub == nil || !isComparable(sub) {
		return
	}

	m.mu.Lock()
	removed, remaining := m.registry.Remove(sub)
	if !removed || remaining > 0 {
		m.mu.Unlock()
		return
	}
	td := m.teardownLocked()
	m.mu.Unlock()

	log.Printf("%s: last subscriber left, disconnecting", m.options.LogPrefix)
	m.finishTeardown(td)
}

// Disconnect closes the socket, clears every subscriber and resets the
// Manager to its initial state. Pending Subscribe calls fail with
// model.ErrDisconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == model.StateDisconnected && m.registry.Count() == 0 {
		m.mu.Unlock()
		return
	}
	td := m.teardownLocked()
	m.mu.Unlock()

	log.Printf("%s: disconnecting", m.options.LogPrefix)
	m.finishTeardown(td)
}

// Reconnect drops the current socket, if any, and schedules a new
// connect. It is coalesced with any reconnect already pending and does
// nothing without subscribers.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.registry.Count() == 0 {
		m.mu.Unlock()
		return
	}

	if m.state == model.StateDisconnected {
		if !m.options.Online.Online() {
			m.mu.Unlock()
			m.logDebug("offline, ignoring reconnect request")
			return
		}
		m.state = model.StateConnecting
		go m.connect(m.lifeCtx)
		m.mu.Unlock()
		return
	}

	after := m.scheduleReconnectLocked(nil, errors.New("reconnect requested"), false)
	m.mu.Unlock()
	if after != nil {
		after()
	}
}

// Status returns the current state of the Manager.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Transport:   m.options.Auth.Kind(),
		State:       m.state,
		Drives:      append([]model.TargetDrive{}, m.drives...),
		Attempt:     m.attempt,
		Subscribers: m.registry.Count(),
	}
	if peer, ok := m.options.Auth.(*PeerAuth); ok {
		s.Remote = peer.Identity
	}
	if m.conn != nil {
		s.ConnectionID = m.conn.id
		if !m.conn.lastPongAt.IsZero() {
			pong := m.conn.lastPongAt
			s.LastPongAt = &pong
		}
	}
	return s
}

// teardownLocked resets all state and leaves the Manager in
// StateDisconnecting until finishTeardown runs.
func (m *Manager) teardownLocked() *teardown {
	td := &teardown{conn: m.conn, ready: m.ready}
	if m.conn != nil {
		m.conn.stopHeartbeat()
	}

	m.lifeCancel()
	m.lifeCtx, m.lifeCancel = context.WithCancel(context.Background())

	m.registry.Clear()
	m.conn = nil
	m.drives = nil
	m.attempt = 0
	m.notifiedDisconnect = false
	m.ready = nil
	m.state = model.StateDisconnecting
	return td
}

func (m *Manager) finishTeardown(td *teardown) {
	if td.conn != nil {
		td.conn.close()
	}
	if td.ready != nil {
		td.ready.settle(model.ErrDisconnected)
	}

	m.mu.Lock()
	// a Subscribe may already have started a new connection
	if m.state == model.StateDisconnecting {
		m.state = model.StateDisconnected
	}
	m.mu.Unlock()
}

// abandonLocked gives up connecting while keeping subscribers and the
// negotiated drives. The returned readiness, if any, must be settled.
func (m *Manager) abandonLocked() *readiness {
	m.state = model.StateDisconnected
	ready := m.ready
	m.ready = nil
	return ready
}

func (m *Manager) logDebug(format string, args ...interface{}) {
	if m.options.LogDebug {
		log.Printf("%s: "+format, append([]interface{}{m.options.LogPrefix}, args...)...)
	}
}

// isComparable reports whether sub can be used as a registry identity.
func isComparable(sub Subscriber) bool {
	return reflect.TypeOf(sub).Comparable()
}
