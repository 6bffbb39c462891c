package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homebase-id/odin-notify/internal/clock"
	"github.com/homebase-id/odin-notify/internal/codec"
	"github.com/homebase-id/odin-notify/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var errSocketClosed = errors.New("use of closed network connection")

// fakeSocket is an in-memory Socket. Frames pushed with push are returned
// by ReadMessage in order; drop simulates an unclean close by the server.
type fakeSocket struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	writes      [][]byte
	closeFrames int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case <-s.closed:
		return 0, nil, errSocketClosed
	default:
	}
	select {
	case frame := <-s.inbound:
		return websocket.TextMessage, frame, nil
	case <-s.closed:
		return 0, nil, errSocketClosed
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	select {
	case <-s.closed:
		return errSocketClosed
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch messageType {
	case websocket.TextMessage:
		s.writes = append(s.writes, append([]byte(nil), data...))
	case websocket.CloseMessage:
		s.closeFrames++
	}
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) push(frame []byte) { s.inbound <- frame }

func (s *fakeSocket) drop() { s.Close() }

func (s *fakeSocket) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeSocket) closeFrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFrames
}

// commands decrypts every text frame written to the socket.
func (s *fakeSocket) commands(t *testing.T) []sentCommand {
	t.Helper()
	s.mu.Lock()
	writes := append([][]byte(nil), s.writes...)
	s.mu.Unlock()

	c := codec.New(nil)
	out := make([]sentCommand, 0, len(writes))
	for _, w := range writes {
		cmd, token, err := c.DecodeCommand(w, testSecret)
		if err != nil {
			t.Fatalf("failed to decode written frame: %v", err)
		}
		out = append(out, sentCommand{Command: cmd, Token: token})
	}
	return out
}

func (s *fakeSocket) count(t *testing.T, name model.CommandName) int {
	t.Helper()
	n := 0
	for _, c := range s.commands(t) {
		if c.Command.Command == name {
			n++
		}
	}
	return n
}

type sentCommand struct {
	Command *model.Command
	Token   string
}

type fakeDialer struct {
	dialed chan *fakeSocket
	count  atomic.Int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeSocket, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header, jar http.CookieJar) (Socket, error) {
	d.count.Add(1)
	s := newFakeSocket()
	d.dialed <- s
	return s, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeSocket {
	t.Helper()
	select {
	case s := <-d.dialed:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

// stubAuth returns a fixed Endpoint. failures makes the first n
// PreConnect calls fail.
type stubAuth struct {
	kind     string
	token    string
	calls    atomic.Int32
	failures atomic.Int32
}

func (a *stubAuth) Kind() string { return a.kind }

func (a *stubAuth) PreConnect(ctx context.Context) (*Endpoint, error) {
	a.calls.Add(1)
	if a.failures.Load() > 0 {
		a.failures.Add(-1)
		return nil, errors.New("token exchange refused")
	}
	return &Endpoint{
		URL:          "ws://identity.test/api/owner/v1/notify/ws",
		Header:       http.Header{},
		SharedSecret: testSecret,
		Token:        a.token,
	}, nil
}

type harness struct {
	clock   *clock.FakeClock
	dialer  *fakeDialer
	online  *OnlineSwitch
	auth    *stubAuth
	manager *Manager
}

const (
	testPingInterval = time.Second
	testStep         = 500 * time.Millisecond
)

func newHarness(t *testing.T, auth *stubAuth) *harness {
	t.Helper()
	if auth == nil {
		auth = &stubAuth{kind: "local"}
	}

	h := &harness{
		clock:  clock.Fake(time.Unix(1700000000, 0)),
		dialer: newFakeDialer(),
		online: &OnlineSwitch{},
		auth:   auth,
	}

	m, err := NewManager(&Options{
		Auth:         auth,
		Dialer:       h.dialer,
		Clock:        h.clock,
		Online:       h.online,
		PingInterval: testPingInterval,
		Backoff:      Backoff{Step: testStep, Cap: 5 * time.Second},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	h.manager = m
	t.Cleanup(m.Disconnect)
	return h
}

func (h *harness) subscribeAsync(drives []model.TargetDrive, sub Subscriber) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- h.manager.Subscribe(context.Background(), drives, sub)
	}()
	return errc
}

// connect subscribes sub and completes the handshake on the dialed socket.
func (h *harness) connect(t *testing.T, drives []model.TargetDrive, sub Subscriber) *fakeSocket {
	t.Helper()
	errc := h.subscribeAsync(drives, sub)
	s := h.dialer.next(t)
	waitFor(t, "establish connection request", func() bool {
		return s.count(t, model.CommandEstablishConnectionRequest) == 1
	})
	s.push(seal(t, map[string]interface{}{"notificationType": "deviceHandshakeSuccess"}))
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	return s
}

func (h *harness) waitState(t *testing.T, want model.State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool {
		return h.manager.Status().State == want
	})
}

func seal(t *testing.T, notification map[string]interface{}) []byte {
	t.Helper()
	plain, err := json.Marshal(notification)
	if err != nil {
		t.Fatalf("failed to marshal notification: %v", err)
	}
	frame, err := codec.New(nil).Seal(plain, testSecret)
	if err != nil {
		t.Fatalf("failed to seal notification: %v", err)
	}
	return frame
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe to return")
		return nil
	}
}

// recorder is a subscriber that records what it observes.
type recorder struct {
	mu            sync.Mutex
	types         []model.NotificationType
	disconnects   int
	reconnects    int
	panicOnNotify bool
}

func (r *recorder) HandleNotification(n *model.Notification) {
	r.mu.Lock()
	r.types = append(r.types, n.NotificationType)
	r.mu.Unlock()
	if r.panicOnNotify {
		panic("subscriber failure")
	}
}

func (r *recorder) OnDisconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
}

func (r *recorder) OnReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnects++
}

// fileEvents returns the observed file notifications in order.
func (r *recorder) fileEvents() []model.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.NotificationType
	for _, nt := range r.types {
		if nt.IsFileEvent() {
			out = append(out, nt)
		}
	}
	return out
}

func (r *recorder) counts() (disconnects, reconnects int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnects, r.reconnects
}
