package server

import (
	"sync"

	"github.com/nvr-ai/go-yolo/pipeline"
)

// subscriberBuffer is how many outcomes a slow stream client may fall behind before it loses some.
const subscriberBuffer = 4

// Hub keeps the latest published outcome and fans outcomes out to stream subscribers.
// It implements pipeline.Sink.
type Hub struct {
	mu     sync.RWMutex
	latest pipeline.Outcome
	seen   bool
	count  uint64
	subs   map[chan pipeline.Outcome]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan pipeline.Outcome]struct{})}
}

// Publish stores o as the latest outcome and offers it to every subscriber.
// A subscriber whose buffer is full misses o.
func (h *Hub) Publish(o pipeline.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = o
	h.seen = true
	h.count++

	for ch := range h.subs {
		select {
		case ch <- o:
		default:
		}
	}
}

// Subscribe registers a stream of future outcomes. The returned func unsubscribes
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan pipeline.Outcome, func()) {
	ch := make(chan pipeline.Outcome, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Latest returns the most recent outcome and whether one was published yet.
func (h *Hub) Latest() (pipeline.Outcome, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.seen
}

// Count returns the number of outcomes published so far.
func (h *Hub) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
