package notify

import "github.com/homebase-id/odin-notify/internal/model"

// Subscriber receives decoded notifications on the connection's read
// loop, so HandleNotification should not block. Identity is interface
// equality; Subscribe rejects types that are not comparable, so use
// pointer types.
type Subscriber interface {
	HandleNotification(n *model.Notification)
}

// DisconnectHandler is implemented by subscribers that want to know when
// a live connection was lost.
//
// OnDisconnect and OnReconnect run in event order on a goroutine shared
// by the Manager's hooks, never on the read loop. They may call Subscribe
// or Unsubscribe; the reconnect is already scheduled when OnDisconnect runs.
type DisconnectHandler interface {
	OnDisconnect()
}

// ReconnectHandler is implemented by subscribers that want to know when a
// lost connection came back.
type ReconnectHandler interface {
	OnReconnect()
}

// Funcs adapts closures to a Subscriber. The *Funcs pointer is the
// subscriber identity. Nil fields are skipped.
type Funcs struct {
	Notification func(n *model.Notification)
	Disconnected func()
	Reconnected  func()
}

func (f *Funcs) HandleNotification(n *model.Notification) {
	if f.Notification != nil {
		f.Notification(n)
	}
}

func (f *Funcs) OnDisconnect() {
	if f.Disconnected != nil {
		f.Disconnected()
	}
}

func (f *Funcs) OnReconnect() {
	if f.Reconnected != nil {
		f.Reconnected()
	}
}
