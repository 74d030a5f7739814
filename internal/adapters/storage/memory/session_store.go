package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// SessionStore is an in-memory domain.SessionStore laid out like the
// realtime database: sessions/{userId}/{sessionId}.
// It is NOT persistent and is only suitable for tests / local mode.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]map[domain.SessionID]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.UserID]map[domain.SessionID]*domain.Session),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.ID = domain.SessionID(domain.NewID())

	owned := s.sessions[session.UserID]
	if owned == nil {
		owned = make(map[domain.SessionID]*domain.Session)
		s.sessions[session.UserID] = owned
	}
	owned[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, userID domain.UserID, sessionID domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID][sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *SessionStore) ListSessions(_ context.Context, userID domain.UserID) (map[domain.SessionID]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.SessionID]*domain.Session, len(s.sessions[userID]))
	for id, sess := range s.sessions[userID] {
		out[id] = sess.Clone()
	}
	return out, nil
}

func (s *SessionStore) TouchSession(_ context.Context, userID domain.UserID, sessionID domain.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID][sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	sess.LastMessageAt = at
	return nil
}

func (s *SessionStore) DeleteSession(_ context.Context, userID domain.UserID, sessionID domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions[userID], sessionID)
	if len(s.sessions[userID]) == 0 {
		delete(s.sessions, userID)
	}
	return nil
}
