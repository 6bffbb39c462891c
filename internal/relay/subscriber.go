package relay

import (
	"log"

	"github.com/homebase-id/odin-notify/internal/model"
)

// Subscriber forwards one transport's notifications and connection
// events to the hub. It implements notify.Subscriber along with the
// disconnect and reconnect handlers.
type Subscriber struct {
	hub       *Hub
	transport string
}

// Subscriber returns the notify subscriber for transport.
func (h *Hub) Subscriber(transport string) *Subscriber {
	return &Subscriber{hub: h, transport: transport}
}

func (s *Subscriber) HandleNotification(n *model.Notification) {
	if n.NotificationType == model.NotificationTypePong {
		return
	}

	msg := &Message{
		Type:             MessageTypeNotification,
		Transport:        s.transport,
		NotificationType: n.NotificationType,
		Payload:          n.Raw,
	}
	if err := s.hub.PublishMessage(msg); err != nil {
		log.Printf("Relay-%s: failed to broadcast %s: %v", s.transport, n.NotificationType, err)
	}
}

func (s *Subscriber) OnDisconnect() {
	s.broadcastStatus(StatusDisconnected)
}

func (s *Subscriber) OnReconnect() {
	s.broadcastStatus(StatusReconnected)
}

func (s *Subscriber) broadcastStatus(state string) {
	msg := &Message{
		Type:      MessageTypeStatus,
		Transport: s.transport,
		State:     state,
	}
	if err := s.hub.BroadcastMessage(msg); err != nil {
		log.Printf("Relay-%s: failed to broadcast status: %v", s.transport, err)
	}
}
