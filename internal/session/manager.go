package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/sonarchat/internal/kv"
)

const DefaultTTL = 24 * time.Hour

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Session is one UI session bound to a storage scope.
type Session struct {
	ID    string
	Scope string

	mu    sync.Mutex
	state *State

	lastUsed time.Time // guarded by Manager.mu
}

// Do runs fn with exclusive access to the session state.
func (s *Session) Do(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Manager keeps open sessions in memory and evicts idle ones.
type Manager struct {
	backend kv.Backend
	ctrl    *Controller
	clock   Clock
	ttl     time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	opening  singleflight.Group
}

// NewManager creates a Manager with the given idle TTL. Zero means DefaultTTL.
func NewManager(backend kv.Backend, ctrl *Controller, ttl time.Duration) *Manager {
	return NewManagerWithClock(backend, ctrl, ttl, realClock{})
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(backend kv.Backend, ctrl *Controller, ttl time.Duration, clock Clock) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		backend:  backend,
		ctrl:     ctrl,
		clock:    clock,
		ttl:      ttl,
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
	}
}

// Controller returns the controller sessions are driven with.
func (m *Manager) Controller() *Controller { return m.ctrl }

// Get returns the session for id, opening it from scope's store on first
// use. A session id seen with a different scope is reopened. The open does
// not inherit ctx cancellation. A degraded open is returned but not kept, so
// the next request retries the store.
func (m *Manager) Get(ctx context.Context, id, scope string) *Session {
	if s := m.lookup(id, scope); s != nil {
		return s
	}

	openCtx := context.WithoutCancel(ctx)
	v, _, _ := m.opening.Do(id+"\x00"+scope, func() (any, error) {
		if s := m.lookup(id, scope); s != nil {
			return s, nil
		}
		s := &Session{
			ID:    id,
			Scope: scope,
			state: m.ctrl.Open(openCtx, m.backend.Scope(scope)),
		}
		if s.state.Degraded() {
			m.logger.Warn("session opened degraded, not caching", "scope", scope,
				"identity_source", s.state.IdentitySource, "conversations", s.state.ConversationsStatus)
			return s, nil
		}
		m.mu.Lock()
		s.lastUsed = m.clock.Now()
		m.sessions[id] = s
		m.mu.Unlock()
		return s, nil
	})
	return v.(*Session)
}

func (m *Manager) lookup(id, scope string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Scope != scope {
		return nil
	}
	s.lastUsed = m.clock.Now()
	return s
}

// Drop forgets a session.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle longer than the TTL and returns how many went.
func (m *Manager) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.lastUsed) > m.ttl {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}
