// Package journal records received notifications in the SQLite journal.
package journal

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/homebase-id/odin-notify/internal/clock"
	"github.com/homebase-id/odin-notify/internal/model"
	"github.com/homebase-id/odin-notify/internal/repository"
)

const (
	DefaultQueueSize = 256

	writeTimeout = 5 * time.Second
)

// Journal is a notify subscriber that persists every notification except
// transport control messages. Writes happen on a background goroutine so
// the socket reader is never blocked on the database.
type Journal struct {
	repo      *repository.NotificationRepository
	transport string
	clock     clock.Clock

	mu     sync.Mutex
	closed bool
	queue  chan *model.Entry
	done   chan struct{}
}

// New starts a Journal writing entries tagged with transport.
func New(repo *repository.NotificationRepository, transport string, c clock.Clock, queueSize int) *Journal {
	if c == nil {
		c = clock.Real()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	j := &Journal{
		repo:      repo,
		transport: transport,
		clock:     c,
		queue:     make(chan *model.Entry, queueSize),
		done:      make(chan struct{}),
	}
	go j.run()
	return j
}

// HandleNotification queues n for persistence. When the queue is full
// the entry is dropped and logged.
func (j *Journal) HandleNotification(n *model.Notification) {
	if n.NotificationType.IsControl() {
		return
	}

	entry := &model.Entry{
		Transport:        j.transport,
		NotificationType: n.NotificationType,
		Sender:           n.Sender,
		Payload:          n.Raw,
		ReceivedAt:       j.clock.Now(),
	}
	entry.DriveFromNotification(n)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	select {
	case j.queue <- entry:
	default:
		log.Printf("Journal-%s: queue full, dropping %s notification", j.transport, n.NotificationType)
	}
}

// Close stops accepting notifications and waits until queued entries are written.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()

	<-j.done
}

func (j *Journal) run() {
	defer close(j.done)

	for entry := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := j.repo.Create(ctx, entry); err != nil {
			log.Printf("Journal-%s: failed to persist %s notification: %v", j.transport, entry.NotificationType, err)
		}
		cancel()
	}
}
