// Package rtdb stores sessions and messages in a Firebase Realtime Database
// using the layout sessions/{userId}/{sessionId} and messages/{sessionId}/{messageId}.
package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firebase.google.com/go/v4/db"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

type Store struct {
	client *db.Client
}

var (
	_ domain.SessionStore = (*Store)(nil)
	_ domain.MessageStore = (*Store)(nil)
)

func NewStore(client *db.Client) *Store {
	return &Store{client: client}
}

func sessionsPath(userID domain.UserID) string {
	return "sessions/" + string(userID)
}

func sessionPath(userID domain.UserID, sessionID domain.SessionID) string {
	return sessionsPath(userID) + "/" + string(sessionID)
}

func messagesPath(sessionID domain.SessionID) string {
	return "messages/" + string(sessionID)
}

// sessionRecord and messageRecord are the wire shapes; times are epoch millis.
type sessionRecord struct {
	Title         string `json:"title"`
	CreatedAt     int64  `json:"createdAt"`
	LastMessageAt int64  `json:"lastMessageAt"`
}

type messageRecord struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// decodeStrict rejects unknown fields so loosely-shaped nodes never reach the services.
func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	return nil
}

func decodeSession(userID domain.UserID, key string, raw json.RawMessage) (*domain.Session, error) {
	var rec sessionRecord
	if err := decodeStrict(raw, &rec); err != nil {
		return nil, err
	}
	sess := &domain.Session{
		ID:            domain.SessionID(key),
		UserID:        userID,
		Title:         rec.Title,
		CreatedAt:     millis(rec.CreatedAt),
		LastMessageAt: millis(rec.LastMessageAt),
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return sess, nil
}

func decodeMessage(sessionID domain.SessionID, key string, raw json.RawMessage) (*domain.Message, error) {
	var rec messageRecord
	if err := decodeStrict(raw, &rec); err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ID:        domain.MessageID(key),
		SessionID: sessionID,
		Role:      domain.Role(rec.Role),
		Content:   rec.Content,
		Timestamp: millis(rec.Timestamp),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return domain.FromMillis(ms)
}

// SessionStore

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	ref, err := s.client.NewRef(sessionsPath(session.UserID)).Push(ctx, sessionRecord{
		Title:         session.Title,
		CreatedAt:     session.CreatedAt.UnixMilli(),
		LastMessageAt: session.LastMessageAt.UnixMilli(),
	})
	if err != nil {
		return domain.Unavailable("rtdb create session", err)
	}
	session.ID = domain.SessionID(ref.Key)
	return nil
}

func (s *Store) GetSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (*domain.Session, error) {
	var raw json.RawMessage
	if err := s.client.NewRef(sessionPath(userID, sessionID)).Get(ctx, &raw); err != nil {
		return nil, domain.Unavailable("rtdb get session", err)
	}
	if isNull(raw) {
		return nil, domain.ErrNotFound
	}
	sess, err := decodeSession(userID, string(sessionID), raw)
	if err != nil {
		return nil, domain.Unavailable("rtdb get session", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, userID domain.UserID) (map[domain.SessionID]*domain.Session, error) {
	var children map[string]json.RawMessage
	if err := s.client.NewRef(sessionsPath(userID)).Get(ctx, &children); err != nil {
		return nil, domain.Unavailable("rtdb list sessions", err)
	}

	out := make(map[domain.SessionID]*domain.Session, len(children))
	for key, raw := range children {
		sess, err := decodeSession(userID, key, raw)
		if err != nil {
			return nil, domain.Unavailable("rtdb list sessions", err)
		}
		out[sess.ID] = sess
	}
	return out, nil
}

func (s *Store) TouchSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, at time.Time) error {
	// Update on a missing path would create a partial record, so check first.
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}
	err := s.client.NewRef(sessionPath(userID, sessionID)).Update(ctx, map[string]interface{}{
		"lastMessageAt": at.UnixMilli(),
	})
	if err != nil {
		return domain.Unavailable("rtdb touch session", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) error {
	if err := s.client.NewRef(sessionPath(userID, sessionID)).Delete(ctx); err != nil {
		return domain.Unavailable("rtdb delete session", err)
	}
	return nil
}

// MessageStore

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	ref, err := s.client.NewRef(messagesPath(msg.SessionID)).Push(ctx, messageRecord{
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp.UnixMilli(),
	})
	if err != nil {
		return domain.Unavailable("rtdb append message", err)
	}
	msg.ID = domain.MessageID(ref.Key)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	var children map[string]json.RawMessage
	if err := s.client.NewRef(messagesPath(sessionID)).Get(ctx, &children); err != nil {
		return nil, domain.Unavailable("rtdb list messages", err)
	}

	out := make([]*domain.Message, 0, len(children))
	for key, raw := range children {
		msg, err := decodeMessage(sessionID, key, raw)
		if err != nil {
			return nil, domain.Unavailable("rtdb list messages", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *Store) DeleteMessage(ctx context.Context, sessionID domain.SessionID, messageID domain.MessageID) error {
	if err := s.client.NewRef(messagesPath(sessionID)).Child(string(messageID)).Delete(ctx); err != nil {
		return domain.Unavailable("rtdb delete message", err)
	}
	return nil
}

func (s *Store) DeleteMessages(ctx context.Context, sessionID domain.SessionID) error {
	if err := s.client.NewRef(messagesPath(sessionID)).Delete(ctx); err != nil {
		return domain.Unavailable("rtdb delete messages", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
