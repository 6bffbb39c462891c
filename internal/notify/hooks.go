package notify

import "sync"

// hookQueue runs connection event hooks one at a time, in the order they
// were queued, on a goroutine of its own. Hooks may call back into the
// Manager; a hook that blocks delays the hooks queued after it but never
// the read loop or a pending reconnect.
type hookQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

func (q *hookQueue) push(f func()) {
	q.mu.Lock()
	q.pending = append(q.pending, f)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.drain()
}

func (q *hookQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		f := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		f()
	}
}
