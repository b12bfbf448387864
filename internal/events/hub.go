package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Hub fans events out to subscribers. A subscriber whose queue is full misses
// the event; Emit never waits.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
	logger *zap.Logger
}

type subscriber struct {
	name    string
	ch      chan Event
	dropped uint64
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.L().Named("events")
	}
	return &Hub{
		subs:   make(map[uint64]*subscriber),
		logger: logger,
	}
}

// Subscribe registers a named listener. The returned cancel func unregisters it
// and closes the channel.
func (h *Hub) Subscribe(name string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{name: name, ch: ch}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if s, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(s.ch)
			}
			h.mu.Unlock()
		})
	}
}

// Emit delivers e to every subscriber with room in its queue.
func (h *Hub) Emit(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		select {
		case s.ch <- e:
		default:
			s.dropped++
			h.logger.Warn("Subscriber queue full, event dropped",
				zap.String("subscriber", s.name),
				zap.String("kind", string(e.Kind)),
				zap.Uint64("dropped", s.dropped))
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every subscriber and closes their channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
}

// Sink is a transport that publishes events outside the process.
type Sink interface {
	Publish(Event) error
}

// Forward subscribes sink to the hub and publishes until ctx is done or the
// hub closes. Publish errors are logged and do not stop forwarding.
func (h *Hub) Forward(ctx context.Context, name string, sink Sink) {
	ch, cancel := h.Subscribe(name, DefaultBuffer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := sink.Publish(e); err != nil {
				h.logger.Warn("Sink publish failed",
					zap.String("sink", name),
					zap.String("kind", string(e.Kind)),
					zap.Error(err))
			}
		}
	}
}
