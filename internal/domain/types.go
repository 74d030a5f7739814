package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string
type UserID string
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a stored message may carry.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Timestamp = time.Time

// DefaultSessionTitle is used when a session is created without a title.
const DefaultSessionTitle = "New Chat"

// NewID returns a UUIDv7 string. UUIDv7 values sort in generation order,
// which backends without server-side push keys rely on.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Now returns the current UTC time truncated to the millisecond precision
// every backend persists.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FromMillis converts an epoch-millisecond value to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
