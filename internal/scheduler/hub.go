package scheduler

import (
	"sync"

	"race-provider/internal/logger"
)

// Hub fans events out to subscribers over buffered channels. Publish never
// blocks: a subscriber that stops draining its channel loses events instead
// of stalling the round loop.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	log    *logger.Logger
}

// Subscription is one receiver's view of the stream. Close it when done.
type Subscription struct {
	C   <-chan Event
	ch  chan Event
	hub *Hub
}

// NewHub creates a hub whose subscriber channels hold up to buffer events.
func NewHub(buffer int, log *logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a new receiver starting from the next published event.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close removes the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s]; !ok {
		return
	}
	delete(s.hub.subs, s)
	close(s.ch)
}

// Publish delivers ev to every subscriber that has buffer room.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.log.Printf("dropping %s event for slow subscriber", ev.Name)
		}
	}
}

// SubscriberCount reports how many receivers are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
