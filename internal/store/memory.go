package store

import (
	"sync"

	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/google/uuid"
)

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
	deleted bool
}

// MemoryStore is a SessionStore backed by a map with one lock per session.
// The map lock is held only for lookup, insert and delete.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]*sessionEntry
	maxIterations int
	newID         func() string
}

// NewMemoryStore creates an empty store whose sessions use maxIterations.
func NewMemoryStore(maxIterations int) *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*sessionEntry),
		maxIterations: maxIterations,
		newID:         uuid.NewString,
	}
}

var _ SessionStore = (*MemoryStore)(nil)

func (s *MemoryStore) lookup(id string) *sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Get returns a snapshot of the session.
func (s *MemoryStore) Get(id string) (domain.Session, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.Session{}, false
	}
	return e.session.Clone(), true
}

// GetOrCreate returns a snapshot of the session. An empty or unknown id
// creates a session under a freshly generated id.
func (s *MemoryStore) GetOrCreate(id string) domain.Session {
	for {
		s.mu.Lock()
		e, ok := s.sessions[id]
		if !ok {
			id = s.newID()
			e = &sessionEntry{session: domain.NewSession(id, s.maxIterations)}
			s.sessions[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.deleted {
			snapshot := e.session.Clone()
			e.mu.Unlock()
			return snapshot
		}
		// Deleted between lookup and lock; the next pass creates a fresh session.
		e.mu.Unlock()
	}
}

// Mutate runs fn under the session's lock.
func (s *MemoryStore) Mutate(id string, fn func(*domain.Session)) error {
	e := s.lookup(id)
	if e == nil {
		return domain.ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.ErrSessionNotFound
	}
	fn(e.session)
	return nil
}

// Delete removes the session, waiting for an in-flight Mutate to finish.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
