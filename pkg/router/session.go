package router

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsche/edureg/pkg/core"
)

// LiveSession binds one mounted component to one websocket.
type LiveSession struct {
	ID        string
	SocketID  string
	Component core.Component
	Socket    *core.Socket
	Params    core.Params
	Session   core.Session
	CreatedAt time.Time

	lastActivity time.Time
	version      uint64
	mu           sync.Mutex
}

// Touch records activity.
func (s *LiveSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the last handled message.
func (s *LiveSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// NextVersion returns an increasing render counter the client uses to drop
// out-of-order frames.
func (s *LiveSession) NextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	return s.version
}

// SessionManagerConfig configures the live session manager.
type SessionManagerConfig struct {
	// MaxSessions caps live sessions; the least recently active one is
	// evicted when full. Zero means no cap.
	MaxSessions int

	// IdleTimeout is how long a silent session is kept.
	IdleTimeout time.Duration
}

// DefaultSessionManagerConfig returns the default configuration.
func DefaultSessionManagerConfig() SessionManagerConfig {
	return SessionManagerConfig{
		MaxSessions: 10000,
		IdleTimeout: 30 * time.Minute,
	}
}

// SessionManager tracks live sessions by id.
type SessionManager struct {
	sessions    map[string]*LiveSession
	maxSessions int
	idleTimeout time.Duration
	mu          sync.RWMutex
}

// NewSessionManager creates a session manager.
func NewSessionManager(config SessionManagerConfig) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*LiveSession),
		maxSessions: config.MaxSessions,
		idleTimeout: config.IdleTimeout,
	}
}

// Create registers a new live session. When the manager is full the least
// recently active session is evicted and returned so its socket can be
// closed.
func (m *SessionManager) Create(socket *core.Socket, comp core.Component, params core.Params, session core.Session) (created, evicted *LiveSession) {
	now := time.Now()
	ls := &LiveSession{
		ID:           uuid.NewString(),
		SocketID:     socket.ID(),
		Component:    comp,
		Socket:       socket,
		Params:       params,
		Session:      session,
		CreatedAt:    now,
		lastActivity: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		evicted = m.evictOldestLocked()
	}
	m.sessions[ls.ID] = ls
	return ls, evicted
}

// Get returns a session by id.
func (m *SessionManager) Get(id string) (*LiveSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expired removes and returns sessions idle longer than the idle timeout.
func (m *SessionManager) Expired() []*LiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var expired []*LiveSession
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.idleTimeout {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	return expired
}

func (m *SessionManager) evictOldestLocked() *LiveSession {
	var oldest *LiveSession
	for _, s := range m.sessions {
		if oldest == nil || s.LastActivity().Before(oldest.LastActivity()) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
	}
	return oldest
}
