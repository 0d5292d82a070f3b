package session

import (
	"sync"
	"time"

	"github.com/vigarepo2/elixir/pkg/logger"
)

// Manager is the in-memory session table. Records live for the process
// lifetime only and are reclaimed by Sweep once idle past the TTL.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
}

func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// GetOrCreate returns the session for key, creating an Idle one on first
// contact. It never fails.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.RLock()
	session, ok := m.sessions[key]
	m.mu.RUnlock()

	if ok {
		return session
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check existence after acquiring the write lock
	if session, ok = m.sessions[key]; ok {
		return session
	}

	session = &Session{
		Key:          key,
		State:        StateIdle,
		LastActivity: time.Now(),
	}
	m.sessions[key] = session

	return session
}

func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[key]
	return session, ok
}

func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

// Touch refreshes the activity timestamp so the sweep spares this session.
func (m *Manager) Touch(key string) {
	m.mu.RLock()
	session, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return
	}

	session.mu.Lock()
	session.LastActivity = time.Now()
	session.mu.Unlock()
}

// Sweep removes every session idle longer than the TTL and returns how many
// were removed. Staleness past the TTL implies the user is not mid-dialogue,
// so removal never races an active handler.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.ttl)

	m.mu.RLock()
	var stale []string
	for key, session := range m.sessions {
		session.mu.Lock()
		idle := session.LastActivity.Before(cutoff)
		session.mu.Unlock()
		if idle {
			stale = append(stale, key)
		}
	}
	m.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	removed := 0
	m.mu.Lock()
	for _, key := range stale {
		session, ok := m.sessions[key]
		if !ok {
			continue
		}
		session.mu.Lock()
		idle := session.LastActivity.Before(cutoff)
		session.mu.Unlock()
		if !idle {
			// Touched between the scan and the delete; spare it.
			continue
		}
		delete(m.sessions, key)
		removed++
	}
	m.mu.Unlock()

	if removed > 0 {
		logger.DebugCF("session", "Swept idle sessions", map[string]interface{}{
			"removed": removed,
		})
	}
	return removed
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
