package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

const subscriberBuffer = 16

// Broadcaster fans fresh snapshots out to live subscribers. Slow
// subscribers miss snapshots rather than block a poll.
type Broadcaster struct {
	subscribers map[uint64]chan *models.Snapshot
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan *models.Snapshot),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan *models.Snapshot) {
	id := b.nextID.Add(1)
	ch := make(chan *models.Snapshot, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(s *models.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- s:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, ending open event streams.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
