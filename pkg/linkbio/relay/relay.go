// Package relay keeps one live change subscription per (kind, profile) and
// fans typed events out to local listeners.
//
// Delivery is best effort and at most once. There are no sequence numbers
// and no replay: a listener that misses events while the transport is down
// has to reload.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
)

// State of a channel's transport
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ErrClosed is returned by Subscribe after Close
var ErrClosed = errors.New("relay closed")

// Listener receives events in the order the channel delivered them
type Listener func(Event)

// Subscriber opens change subscriptions. *changefeed.Hub implements it.
type Subscriber interface {
	Subscribe(topic changefeed.Topic) (*changefeed.Subscription, error)
}

type channelKey struct {
	kind      Kind
	profileID uint
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type channel struct {
	key       channelKey
	listeners []listenerEntry
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
}

// Relay is safe for concurrent use. Construct with New.
type Relay struct {
	source     Subscriber
	retryDelay time.Duration
	logger     zerolog.Logger

	mu       sync.Mutex
	channels map[channelKey]*channel
	nextID   uint64
	closed   bool
}

// New creates a relay reading from source. A dropped subscription is
// re-established after retryDelay.
func New(source Subscriber, retryDelay time.Duration, logger zerolog.Logger) *Relay {
	return &Relay{
		source:     source,
		retryDelay: retryDelay,
		logger:     logger.With().Str("component", "relay").Logger(),
		channels:   make(map[channelKey]*channel),
	}
}

// Handle is a listener registration returned by Subscribe
type Handle struct {
	relay *Relay
	id    uint64
	keys  []channelKey
	once  sync.Once
}

// Subscribe registers l for the given kinds of the profile's changes.
// Channels that are not live yet are opened before Subscribe returns.
func (r *Relay) Subscribe(profileID uint, kinds []Kind, l Listener) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	r.nextID++
	h := &Handle{relay: r, id: r.nextID}
	for _, kind := range kinds {
		if !kind.Valid() {
			r.removeLocked(h)
			return nil, fmt.Errorf("unknown event kind %q", kind)
		}
		key := channelKey{kind: kind, profileID: profileID}
		ch, ok := r.channels[key]
		if !ok {
			var err error
			if ch, err = r.openLocked(key); err != nil {
				r.removeLocked(h)
				return nil, fmt.Errorf("subscribe %s:%d: %w", kind, profileID, err)
			}
		}
		ch.listeners = append(ch.listeners, listenerEntry{id: h.id, fn: l})
		h.keys = append(h.keys, key)
	}
	return h, nil
}

// Unsubscribe removes the listener. A channel left without listeners is torn
// down; events already being dispatched may still reach the listener.
func (h *Handle) Unsubscribe() {
	h.once.Do(func() {
		h.relay.mu.Lock()
		defer h.relay.mu.Unlock()
		h.relay.removeLocked(h)
	})
}

// State returns the transport state of a (kind, profile) channel
func (r *Relay) State(kind Kind, profileID uint) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[channelKey{kind: kind, profileID: profileID}]
	if !ok {
		return StateDisconnected
	}
	return ch.state
}

// Channels returns the number of live channels
func (r *Relay) Channels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Close tears every channel down and waits for their dispatch loops to exit
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	var done []chan struct{}
	for key, ch := range r.channels {
		ch.cancel()
		done = append(done, ch.done)
		delete(r.channels, key)
	}
	r.mu.Unlock()

	for _, d := range done {
		<-d
	}
}

func (r *Relay) openLocked(key channelKey) (*channel, error) {
	ch := &channel{key: key, state: StateConnecting, done: make(chan struct{})}
	sub, err := r.source.Subscribe(topicFor(key))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch.cancel = cancel
	ch.state = StateConnected
	r.channels[key] = ch
	go r.run(ctx, ch, sub)
	return ch, nil
}

func (r *Relay) removeLocked(h *Handle) {
	for _, key := range h.keys {
		ch, ok := r.channels[key]
		if !ok {
			continue
		}
		for i, entry := range ch.listeners {
			if entry.id == h.id {
				ch.listeners = append(ch.listeners[:i:i], ch.listeners[i+1:]...)
				break
			}
		}
		if len(ch.listeners) == 0 {
			ch.cancel()
			delete(r.channels, key)
		}
	}
	h.keys = nil
}

func topicFor(key channelKey) changefeed.Topic {
	return changefeed.Topic{Table: key.kind.Table(), ProfileID: key.profileID}
}

func (r *Relay) setState(ch *channel, s State) {
	r.mu.Lock()
	ch.state = s
	r.mu.Unlock()
}

func (r *Relay) run(ctx context.Context, ch *channel, sub *changefeed.Subscription) {
	defer close(ch.done)
	logger := r.logger.With().Str("kind", string(ch.key.kind)).Uint("profile_id", ch.key.profileID).Logger()

	for {
		r.consume(ctx, ch, sub, logger)
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.setState(ch, StateDisconnected)
		logger.Warn().Dur("retry_in", r.retryDelay).Msg("change subscription dropped")

		if sub = r.reconnect(ctx, ch, logger); sub == nil {
			return
		}
		logger.Info().Msg("change subscription restored")
	}
}

func (r *Relay) reconnect(ctx context.Context, ch *channel, logger zerolog.Logger) *changefeed.Subscription {
	for {
		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		r.setState(ch, StateConnecting)
		sub, err := r.source.Subscribe(topicFor(ch.key))
		if err == nil {
			r.setState(ch, StateConnected)
			return sub
		}
		r.setState(ch, StateDisconnected)
		logger.Warn().Err(err).Msg("resubscribe failed")
	}
}

func (r *Relay) consume(ctx context.Context, ch *channel, sub *changefeed.Subscription, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C():
			if !ok {
				return
			}
			ev, err := Decode(c)
			if err != nil {
				logger.Warn().Err(err).Msg("skipping undecodable change")
				continue
			}
			r.dispatch(ch, ev)
		}
	}
}

func (r *Relay) dispatch(ch *channel, ev Event) {
	r.mu.Lock()
	listeners := append([]listenerEntry(nil), ch.listeners...)
	r.mu.Unlock()

	for _, entry := range listeners {
		entry.fn(ev)
	}
}
