package changefeed

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrHubClosed is returned by Subscribe after Close
var ErrHubClosed = errors.New("changefeed hub closed")

// Hub fans changes out to in-process subscriptions. Delivery is non-blocking:
// a subscriber whose buffer is full misses the change.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	logger zerolog.Logger
}

// NewHub creates a hub whose subscriptions buffer up to buffer changes
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger.With().Str("component", "changefeed").Logger(),
	}
}

// Subscribe opens a subscription for the topic
func (h *Hub) Subscribe(topic Topic) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.nextID++
	sub := &Subscription{
		hub:   h,
		id:    h.nextID,
		topic: topic,
		ch:    make(chan Change, h.buffer),
	}
	h.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers c to every matching subscription
func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for _, sub := range h.subs {
		if !sub.topic.Matches(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			h.logger.Warn().
				Str("topic", sub.topic.String()).
				Str("table", c.Table).
				Str("action", string(c.Action)).
				Msg("subscriber buffer full, change dropped")
		}
	}
	return nil
}

// Disconnect closes every open subscription but keeps accepting new ones.
// Subscribers observe a closed channel, the same as a dropped transport.
func (h *Hub) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropAll()
}

// Close disconnects every subscription and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropAll()
	h.closed = true
}

// Len returns the number of open subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) dropAll() {
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Subscription receives the changes of one topic
type Subscription struct {
	hub   *Hub
	id    uint64
	topic Topic
	ch    chan Change
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.ch)
}
