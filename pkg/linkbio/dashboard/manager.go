package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultInboxSize = 50

type session struct {
	agg      *Aggregator
	inbox    *Inbox
	lastUsed time.Time
}

// Manager keeps one aggregator per owner profile. Sessions are evicted on
// logout and after sitting idle; the next request loads them again.
type Manager struct {
	store  Store
	relay  Subscriber
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uint]*session
}

// NewManager creates an empty manager
func NewManager(s Store, r Subscriber, logger zerolog.Logger) *Manager {
	return &Manager{
		store:    s,
		relay:    r,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[uint]*session),
	}
}

// Get returns the profile's aggregator, initializing it on first use.
// Concurrent callers wait for the load in flight, so the aggregator is
// returned ready or with the load error. After a failed load the error is
// returned until Refresh succeeds.
func (m *Manager) Get(ctx context.Context, profileID uint) (*Aggregator, error) {
	s := m.session(profileID)
	if err := s.agg.Ensure(ctx); err != nil {
		return s.agg, err
	}
	return s.agg, nil
}

// Aggregator returns the profile's aggregator without loading it
func (m *Manager) Aggregator(profileID uint) *Aggregator {
	return m.session(profileID).agg
}

// Inbox returns the profile's notification inbox
func (m *Manager) Inbox(profileID uint) *Inbox {
	return m.session(profileID).inbox
}

// Sessions returns the number of live sessions
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) session(profileID uint) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[profileID]; ok {
		s.lastUsed = m.now()
		return s
	}
	inbox := NewInbox(defaultInboxSize)
	notifier := Notifiers{NewLogNotifier(m.logger), inbox}
	s := &session{
		agg:      New(profileID, m.store, m.relay, notifier, m.logger),
		inbox:    inbox,
		lastUsed: m.now(),
	}
	m.sessions[profileID] = s
	return s
}

// Evict closes and forgets the profile's aggregator
func (m *Manager) Evict(profileID uint) {
	m.mu.Lock()
	s, ok := m.sessions[profileID]
	delete(m.sessions, profileID)
	m.mu.Unlock()
	if ok {
		s.agg.Close()
	}
}

// Sweep evicts sessions unused for longer than idle and returns how many
// were evicted
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	var stale []*session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.agg.Close()
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is cancelled
func (m *Manager) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(idle); n > 0 {
				m.logger.Debug().Int("evicted", n).Msg("evicted idle dashboard sessions")
			}
		}
	}
}

// Close closes every aggregator
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uint]*session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.agg.Close()
	}
}
