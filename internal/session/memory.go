package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore provides an in-memory implementation of Store.
// Sessions live for the process lifetime; nothing is persisted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates a new in-memory session registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
	}
}

// Create registers a session. An empty id mints a fresh one.
func (s *MemoryStore) Create(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if sess, exists := s.sessions[id]; exists {
		return sess, nil
	}

	now := time.Now()
	sess := Session{ID: id, CreatedAt: now, UpdatedAt: now}
	s.sessions[id] = sess
	return sess, nil
}

// Get retrieves a session by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// SetThread binds the provider thread backing the session.
func (s *MemoryStore) SetThread(ctx context.Context, id, threadID string) error {
	return s.update(id, func(sess *Session) error {
		sess.ThreadID = threadID
		return nil
	})
}

// AppendTurn adds a turn to the session's local log.
func (s *MemoryStore) AppendTurn(ctx context.Context, id string, turn Turn) error {
	return s.update(id, func(sess *Session) error {
		if turn.Timestamp.IsZero() {
			turn.Timestamp = time.Now()
		}
		sess.Turns = append(sess.Turns, turn)
		return nil
	})
}

// BeginRun claims the session's run slot.
func (s *MemoryStore) BeginRun(ctx context.Context, id, runID string) error {
	return s.update(id, func(sess *Session) error {
		if sess.ActiveRun != "" {
			return ErrRunInFlight
		}
		sess.ActiveRun = runID
		return nil
	})
}

// EndRun releases the session's run slot.
func (s *MemoryStore) EndRun(ctx context.Context, id string) error {
	return s.update(id, func(sess *Session) error {
		sess.ActiveRun = ""
		return nil
	})
}

// Delete removes a session.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Count returns the number of sessions (useful for testing).
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) update(id string, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return ErrNotFound
	}
	if err := fn(&sess); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now()
	s.sessions[id] = sess
	return nil
}
