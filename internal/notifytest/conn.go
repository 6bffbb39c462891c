package notifytest

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homebase-id/odin-notify/internal/model"
)

const writeWait = 5 * time.Second

// Received is one command read off a socket.
type Received struct {
	Command model.Command
	Token   string
}

// Conn is the host side of one accepted socket.
type Conn struct {
	host   *Host
	ws     *websocket.Conn
	secret []byte
	peer   bool

	writeMu sync.Mutex

	mu             sync.Mutex
	received       []Received
	tokenMismatch  int
	badFrames      int
	closed         chan struct{}
	closeOnce      sync.Once
	closeCode      int
	receivedSignal chan struct{}
}

func newConn(h *Host, ws *websocket.Conn, secret []byte, peer bool) *Conn {
	return &Conn{
		host:           h,
		ws:             ws,
		secret:         secret,
		peer:           peer,
		closed:         make(chan struct{}),
		receivedSignal: make(chan struct{}, 1),
	}
}

// Peer reports whether the socket was opened on the peer endpoint.
func (c *Conn) Peer() bool { return c.peer }

// Push seals notification and writes it to the client.
func (c *Conn) Push(notification interface{}) error {
	plain, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	frame, err := c.host.codec.Seal(plain, c.secret)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, frame)
}

// PushRaw writes frame to the client as is.
func (c *Conn) PushRaw(frame []byte) error {
	return c.write(websocket.TextMessage, frame)
}

// Drop closes the socket without a close frame.
func (c *Conn) Drop() {
	c.ws.Close()
}

// Closed is closed once the socket stops reading.
func (c *Conn) Closed() <-chan struct{} { return c.closed }

// CloseCode returns the close code sent by the client, 0 if none.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Received returns the commands read so far.
func (c *Conn) Received() []Received {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Received(nil), c.received...)
}

// Count returns how many commands named name were received.
func (c *Conn) Count(name model.CommandName) int {
	n := 0
	for _, r := range c.Received() {
		if r.Command.Command == name {
			n++
		}
	}
	return n
}

// TokenMismatches returns the number of peer frames without the expected token.
func (c *Conn) TokenMismatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenMismatch
}

// WaitFor blocks until at least n commands named name were received.
func (c *Conn) WaitFor(name model.CommandName, n int, timeout time.Duration) error {
	deadline := time.After(timeout)
	for c.Count(name) < n {
		select {
		case <-c.receivedSignal:
		case <-deadline:
			return fmt.Errorf("received %d %s commands, expected %d", c.Count(name), name, n)
		}
	}
	return nil
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Conn) readPump() {
	defer func() {
		c.ws.Close()
		c.closeOnce.Do(func() { close(c.closed) })
	}()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				c.mu.Lock()
				c.closeCode = ce.Code
				c.mu.Unlock()
			}
			return
		}

		cmd, token, err := c.host.codec.DecodeCommand(frame, c.secret)
		if err != nil {
			c.mu.Lock()
			c.badFrames++
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		c.received = append(c.received, Received{Command: *cmd, Token: token})
		if c.peer && token != c.host.PeerToken {
			c.tokenMismatch++
		}
		c.mu.Unlock()

		select {
		case c.receivedSignal <- struct{}{}:
		default:
		}

		c.respond(cmd)
	}
}

func (c *Conn) respond(cmd *model.Command) {
	c.host.mu.Lock()
	handshake, pong := c.host.autoHandshake, c.host.autoPong
	c.host.mu.Unlock()

	switch cmd.Command {
	case model.CommandEstablishConnectionRequest:
		if handshake {
			c.Push(map[string]string{"notificationType": string(model.NotificationTypeDeviceHandshakeSuccess)})
		}
	case model.CommandPing:
		if pong {
			c.Push(map[string]string{"notificationType": string(model.NotificationTypePong)})
		}
	}
}
