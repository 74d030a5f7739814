package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// MessageStore is an in-memory domain.MessageStore keyed by session.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.SessionID][]*domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.SessionID][]*domain.Message),
	}
}

func (s *MessageStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = domain.MessageID(domain.NewID())
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg.Clone())
	return nil
}

func (s *MessageStore) ListMessages(_ context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *MessageStore) DeleteMessage(_ context.Context, sessionID domain.SessionID, messageID domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[sessionID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.messages[sessionID] = append(msgs[:i:i], msgs[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MessageStore) DeleteMessages(_ context.Context, sessionID domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, sessionID)
	return nil
}
