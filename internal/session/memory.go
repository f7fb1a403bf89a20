package session

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore constructs an in-memory Store for development and tests,
// and for deployments that accept losing sessions on restart.
//
// The map holds one row per user ever seen and is never evicted: a finished
// run resets to idle rather than deleting, so dedup state survives. Memory
// use grows with the audience, which is acceptable at this bot's scale.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]Session),
	}
}

// Get returns a copy of the stored session, or the initial session if the
// user is unknown.
func (m *memoryStore) Get(_ context.Context, userID int64) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	return New(), nil
}

// Put stores a copy of the session for the user.
func (m *memoryStore) Put(_ context.Context, userID int64, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[userID] = s
	return nil
}

// Len reports the number of tracked sessions.
func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
