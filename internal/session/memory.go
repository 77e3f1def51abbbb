// Package session provides the in-process implementation of
// domain.SessionStore: a mutex-guarded map with lazy eviction on access and
// periodic sweeps driven by the pipeline. State is process-local by design;
// a restart drops all sessions and the app re-authenticates.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory session map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.AppSession
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.AppSession),
	}
}

// Put stores a session keyed by its id.
func (m *MemoryStore) Put(_ context.Context, s domain.AppSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get returns the session with the given id. Expired sessions are evicted on
// access and reported as domain.ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (domain.AppSession, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return domain.AppSession{}, domain.ErrNotFound
	}

	if time.Now().After(s.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return domain.AppSession{}, domain.ErrNotFound
	}
	return s, nil
}

// Invalidate marks a session inactive without waiting for its TTL.
func (m *MemoryStore) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Active = false
	m.sessions[id] = s
	return nil
}

// DeleteExpired removes all sessions that expired before now and returns the
// eviction count.
func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of live entries, for monitoring.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Compile-time interface check.
var _ domain.SessionStore = (*MemoryStore)(nil)
