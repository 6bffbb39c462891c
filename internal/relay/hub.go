// Package relay re-broadcasts notifications and connection status to
// local WebSocket clients.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/homebase-id/odin-notify/internal/buffer"
	"github.com/homebase-id/odin-notify/internal/model"
)

// DefaultHistory is the number of recent notifications replayed to a
// newly registered client.
const DefaultHistory = 32

// MessageType represents the type of relay message.
type MessageType string

const (
	// Client -> Server message types
	MessageTypePing MessageType = "ping"

	// Server -> Client message types
	MessageTypeNotification MessageType = "notification"
	MessageTypeStatus       MessageType = "status"
	MessageTypePong         MessageType = "pong"
)

const (
	StatusDisconnected = "disconnected"
	StatusReconnected  = "reconnected"
)

// Message represents a relay message.
type Message struct {
	Type             MessageType            `json:"type"`
	Transport        string                 `json:"transport,omitempty"`
	NotificationType model.NotificationType `json:"notificationType,omitempty"`
	Payload          json.RawMessage        `json:"payload,omitempty"`
	State            string                 `json:"state,omitempty"`
}

// Client is one local WebSocket connection.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new relay client.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.New().String(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// ID returns the client identifier.
func (c *Client) ID() string {
	return c.id
}

// Send queues a message to be sent to the client.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		// slow consumer
		c.closeLocked()
	}
}

// Close closes the client's send queue.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Hub tracks the local clients.
type Hub struct {
	clients map[*Client]bool
	recent  *buffer.Ring[[]byte]
	mu      sync.RWMutex
}

// NewHub creates an empty Hub with DefaultHistory.
func NewHub() *Hub {
	return NewHubWithHistory(DefaultHistory)
}

// NewHubWithHistory creates an empty Hub replaying up to history
// published messages to new clients.
func NewHubWithHistory(history int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		recent:  buffer.NewRing[[]byte](history),
	}
}

// Register adds a client to the hub and replays recent published messages.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, data := range h.recent.Snapshot() {
		client.Send(data)
	}
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	client.Close()
}

// Broadcast sends data to all connected clients.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Send(data)
	}
}

// Publish records data in the replay history and sends it to all clients.
func (h *Hub) Publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent.Push(data)
	for client := range h.clients {
		client.Send(data)
	}
}

// PublishMessage is Publish for a Message.
func (h *Hub) PublishMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Publish(data)
	return nil
}

// BroadcastMessage sends a Message to all connected clients.
func (h *Hub) BroadcastMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
