// Package broadcast fans scan events out from the single scanner reader to
// any number of connected stream clients.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultQueueSize is the per-subscriber buffer. A subscriber that falls
// this far behind is dropped rather than allowed to block the producer.
const DefaultQueueSize = 200

// Subscriber is one registered consumer. Messages are received from C in
// publication order. C is closed when the broadcaster drops the subscriber
// for falling behind; it is not closed by Unregister, since the owning
// connection handler is the only reader.
type Subscriber struct {
	C chan string
}

// Broadcaster is a process-wide registry of subscriber queues. The zero
// value is not usable; call New.
type Broadcaster struct {
	mu        sync.Mutex
	subs      map[*Subscriber]struct{}
	queueSize int
}

// New creates a Broadcaster with the given per-subscriber queue size.
// A size of zero or less uses DefaultQueueSize.
func New(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		subs:      make(map[*Subscriber]struct{}),
		queueSize: queueSize,
	}
}

// Register adds a new subscriber and returns it. The caller owns the
// subscriber and must Unregister it when its connection ends.
func (b *Broadcaster) Register() *Subscriber {
	sub := &Subscriber{C: make(chan string, b.queueSize)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unregister removes a subscriber. Removing a subscriber that was never
// registered, or was already removed, is a no-op.
func (b *Broadcaster) Unregister(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers msg to every registered subscriber without blocking.
// A subscriber whose queue is full misses this message and is removed from
// the registry; its channel is closed so the owning handler wakes up.
func (b *Broadcaster) Publish(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dead []*Subscriber
	for sub := range b.subs {
		select {
		case sub.C <- msg:
		default:
			dead = append(dead, sub)
		}
	}

	for _, sub := range dead {
		delete(b.subs, sub)
		close(sub.C)
		log.Warn().Msg("dropping slow subscriber")
	}
}

// Len returns the number of registered subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
