package domain

import (
	"context"
	"time"
)

// CompletionProvider turns an ordered turn sequence into one generated reply.
type CompletionProvider interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// TokenVerifier resolves an opaque bearer credential to a user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (UserID, error)
}

// SessionStore persists sessions keyed by (userID, sessionID).
type SessionStore interface {
	// CreateSession assigns session.ID and writes the record.
	CreateSession(ctx context.Context, session *Session) error
	// GetSession returns ErrNotFound when nothing lives at (userID, sessionID).
	GetSession(ctx context.Context, userID UserID, sessionID SessionID) (*Session, error)
	ListSessions(ctx context.Context, userID UserID) (map[SessionID]*Session, error)
	// TouchSession sets LastMessageAt.
	TouchSession(ctx context.Context, userID UserID, sessionID SessionID, at time.Time) error
	// DeleteSession succeeds when the record is already absent.
	DeleteSession(ctx context.Context, userID UserID, sessionID SessionID) error
}

// MessageStore persists append-only messages keyed by (sessionID, messageID).
type MessageStore interface {
	// AppendMessage assigns msg.ID and writes the record.
	AppendMessage(ctx context.Context, msg *Message) error
	// ListMessages returns every message of the session in store iteration order.
	ListMessages(ctx context.Context, sessionID SessionID) ([]*Message, error)
	DeleteMessage(ctx context.Context, sessionID SessionID, messageID MessageID) error
	DeleteMessages(ctx context.Context, sessionID SessionID) error
}

// SessionLocker serializes message exchanges on one session.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID SessionID) (unlock func(), err error)
}
