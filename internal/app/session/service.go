package session

import (
	"context"
	"strings"
	"time"

	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

// Service creates, lists and deletes sessions. Every operation is scoped to
// the caller's user id; the store path (userID, sessionID) is the ownership check.
type Service struct {
	sessions domain.SessionStore
	messages domain.MessageStore
	locker   domain.SessionLocker
	now      func() time.Time
}

func NewService(
	sessions domain.SessionStore,
	messages domain.MessageStore,
	locker domain.SessionLocker,
) *Service {
	return &Service{
		sessions: sessions,
		messages: messages,
		locker:   locker,
		now:      domain.Now,
	}
}

type CreateInput struct {
	UserID domain.UserID
	Title  string
}

type CreateOutput struct {
	Session *domain.Session
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateOutput, error) {
	log := observability.LoggerFromContext(ctx)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}

	now := s.now()
	sess := &domain.Session{
		UserID:        in.UserID,
		Title:         title,
		CreatedAt:     now,
		LastMessageAt: now,
	}

	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	log.Info("session created", "session_id", sess.ID)
	return &CreateOutput{Session: sess}, nil
}

// List returns every session owned by userID. Ordering is left to the caller.
func (s *Service) List(ctx context.Context, userID domain.UserID) (map[domain.SessionID]*domain.Session, error) {
	sessions, err := s.sessions.ListSessions(ctx, userID)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list sessions", "error", err)
		return nil, err
	}
	return sessions, nil
}

// Delete removes the session and its messages. A session that is absent at
// (userID, sessionID), including one owned by another user, is reported as
// deleted without touching any message.
func (s *Service) Delete(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) error {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		log.Error("failed to lock session", "error", err)
		return err
	}
	defer unlock()

	if _, err := s.sessions.GetSession(ctx, userID, sessionID); err != nil {
		if domain.IsNotFound(err) {
			log.Info("delete of absent session")
			return nil
		}
		log.Error("failed to read session", "error", err)
		return err
	}

	// Messages first: a failure here leaves the session reachable for a retry.
	if err := s.messages.DeleteMessages(ctx, sessionID); err != nil {
		log.Error("failed to delete messages", "error", err)
		return err
	}
	if err := s.sessions.DeleteSession(ctx, userID, sessionID); err != nil {
		log.Error("failed to delete session", "error", err)
		return err
	}

	log.Info("session deleted")
	return nil
}
