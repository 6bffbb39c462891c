package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homebase-id/odin-notify/internal/model"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	client1 := NewClient(hub, nil)
	client2 := NewClient(hub, nil)
	hub.Register(client1)
	hub.Register(client2)

	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}
	if client1.ID() == client2.ID() {
		t.Error("client ids must be unique")
	}

	hub.Broadcast([]byte("hello"))
	for i, c := range []*Client{client1, client2} {
		select {
		case got := <-c.send:
			if string(got) != "hello" {
				t.Errorf("client%d received %s", i+1, got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client%d received nothing", i+1)
		}
	}

	hub.Unregister(client1)
	if hub.ClientCount() != 1 || !client1.IsClosed() {
		t.Error("unregister did not remove and close the client")
	}
}

func TestClientSlowConsumerClosed(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil)
	for i := 0; i < cap(c.send)+1; i++ {
		c.Send([]byte("x"))
	}
	if !c.IsClosed() {
		t.Error("expected overflowing client to be closed")
	}
	c.Send([]byte("after close"))
}

func TestSubscriberMessages(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil)
	hub.Register(c)
	sub := hub.Subscriber("peer")

	sub.HandleNotification(&model.Notification{NotificationType: model.NotificationTypePong})
	sub.HandleNotification(&model.Notification{
		NotificationType: model.NotificationTypeAppNotificationAdded,
		Raw:              json.RawMessage(`{"notificationType":"appNotificationAdded"}`),
	})
	sub.OnDisconnect()
	sub.OnReconnect()

	var got []Message
	for len(c.send) > 0 {
		var msg Message
		if err := json.Unmarshal(<-c.send, &msg); err != nil {
			t.Fatalf("invalid message: %v", err)
		}
		got = append(got, msg)
	}

	if len(got) != 3 {
		t.Fatalf("expected pong to be skipped and 3 messages, got %d", len(got))
	}
	if got[0].Type != MessageTypeNotification || got[0].Transport != "peer" ||
		got[0].NotificationType != model.NotificationTypeAppNotificationAdded {
		t.Errorf("unexpected notification message %+v", got[0])
	}
	if got[1].State != StatusDisconnected || got[2].State != StatusReconnected {
		t.Errorf("unexpected status messages %+v %+v", got[1], got[2])
	}
}

func TestHandlerEndToEnd(t *testing.T) {
	hub := NewHub()
	handler := NewHandler(hub, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.HandleConnection(w, r)
	}))
	defer server.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := conn.WriteJSON(&Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var pong Message
	if err := conn.ReadJSON(&pong); err != nil || pong.Type != MessageTypePong {
		t.Fatalf("expected pong, got %+v (%v)", pong, err)
	}

	hub.Subscriber("local").HandleNotification(&model.Notification{
		NotificationType: model.NotificationTypeFileAdded,
		Raw:              json.RawMessage(`{"notificationType":"fileAdded"}`),
	})
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Type != MessageTypeNotification || msg.NotificationType != model.NotificationTypeFileAdded {
		t.Errorf("unexpected message %+v", msg)
	}
	if !strings.Contains(string(msg.Payload), "fileAdded") {
		t.Errorf("payload not forwarded: %s", msg.Payload)
	}
}

func TestHubReplaysRecentNotifications(t *testing.T) {
	hub := NewHubWithHistory(2)
	sub := hub.Subscriber("local")
	for _, typ := range []model.NotificationType{
		model.NotificationTypeFileAdded,
		model.NotificationTypeFileModified,
		model.NotificationTypeFileDeleted,
	} {
		sub.HandleNotification(&model.Notification{NotificationType: typ, Raw: json.RawMessage(`{}`)})
	}
	// Status is live only.
	sub.OnDisconnect()

	late := NewClient(hub, nil)
	hub.Register(late)

	var got []model.NotificationType
	for len(late.send) > 0 {
		var msg Message
		if err := json.Unmarshal(<-late.send, &msg); err != nil {
			t.Fatalf("invalid message: %v", err)
		}
		got = append(got, msg.NotificationType)
	}
	want := []model.NotificationType{model.NotificationTypeFileModified, model.NotificationTypeFileDeleted}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected replay %v, got %v", want, got)
	}
}
