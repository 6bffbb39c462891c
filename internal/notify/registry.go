package notify

import (
	"log"
	"sync"

	"github.com/homebase-id/odin-notify/internal/model"
)

// Registry is the fan-out list of subscribers sharing one connection.
// Subscribers are kept in registration order.
type Registry struct {
	logPrefix   string
	subscribers []Subscriber
	mu          sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry(logPrefix string) *Registry {
	return &Registry{
		logPrefix: logPrefix,
	}
}

// Add registers s. Returns false if s was already registered.
func (r *Registry) Add(s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.subscribers {
		if existing == s {
			return false
		}
	}
	r.subscribers = append(r.subscribers, s)
	return true
}

// Remove unregisters s and returns whether it was present and how many
// subscribers remain.
func (r *Registry) Remove(s Subscriber) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.subscribers {
		if existing == s {
			r.subscribers = append(r.subscribers[:i:i], r.subscribers[i+1:]...)
			return true, len(r.subscribers)
		}
	}
	return false, len(r.subscribers)
}

// Count returns the number of subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Clear removes every subscriber.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = nil
}

// snapshot returns the current subscribers so callbacks run without the
// lock held and may unsubscribe themselves.
func (r *Registry) snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscriber, len(r.subscribers))
	copy(out, r.subscribers)
	return out
}

// Dispatch delivers n to every subscriber in registration order.
func (r *Registry) Dispatch(n *model.Notification) {
	for _, s := range r.snapshot() {
		r.invoke("HandleNotification", func() {
			s.HandleNotification(n)
		})
	}
}

// Disconnected calls OnDisconnect on subscribers that implement it.
func (r *Registry) Disconnected() {
	for _, s := range r.snapshot() {
		if h, ok := s.(DisconnectHandler); ok {
			r.invoke("OnDisconnect", h.OnDisconnect)
		}
	}
}

// Reconnected calls OnReconnect on subscribers that implement it.
func (r *Registry) Reconnected() {
	for _, s := range r.snapshot() {
		if h, ok := s.(ReconnectHandler); ok {
			r.invoke("OnReconnect", h.OnReconnect)
		}
	}
}

func (r *Registry) invoke(what string, f func()) {
	defer func() {
		rec := recover()
		if rec != nil {
			log.Printf("%s: %s recovered from panic: %+v", r.logPrefix, what, rec)
		}
	}()
	f()
}
