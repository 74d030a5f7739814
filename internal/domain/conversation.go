package domain

import (
	"cmp"
	"fmt"
)

// Session is a named, user-owned conversation thread.
// It is only ever reachable through the (UserID, ID) pair.
type Session struct {
	ID            SessionID
	UserID        UserID
	Title         string
	CreatedAt     Timestamp
	LastMessageAt Timestamp
}

// Validate rejects records that lack a required field.
func (s *Session) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil session", ErrInvalidRecord)
	case s.ID == "":
		return fmt.Errorf("%w: session without id", ErrInvalidRecord)
	case s.UserID == "":
		return fmt.Errorf("%w: session %s without owner", ErrInvalidRecord, s.ID)
	case s.CreatedAt.IsZero():
		return fmt.Errorf("%w: session %s without createdAt", ErrInvalidRecord, s.ID)
	case s.LastMessageAt.IsZero():
		return fmt.Errorf("%w: session %s without lastMessageAt", ErrInvalidRecord, s.ID)
	}
	return nil
}

// Message is one append-only turn within a session.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Role      Role
	Content   string
	Timestamp Timestamp
}

// Validate rejects records that lack a required field or carry an unknown role.
func (m *Message) Validate() error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: nil message", ErrInvalidRecord)
	case m.ID == "":
		return fmt.Errorf("%w: message without id", ErrInvalidRecord)
	case m.SessionID == "":
		return fmt.Errorf("%w: message %s without session", ErrInvalidRecord, m.ID)
	case !m.Role.Valid():
		return fmt.Errorf("%w: message %s has role %q", ErrInvalidRecord, m.ID, m.Role)
	case m.Timestamp.IsZero():
		return fmt.Errorf("%w: message %s without timestamp", ErrInvalidRecord, m.ID)
	}
	return nil
}

// Turn is one role-tagged text turn handed to a CompletionProvider.
type Turn struct {
	Role Role
	Text string
}

// Less orders messages chronologically, falling back to the generated id
// when two messages share a timestamp.
func Less(a, b *Message) bool {
	return Compare(a, b) < 0
}

// Compare is the three-way form of Less, for slices.SortFunc.
func Compare(a, b *Message) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Clone returns a shallow copy so stores never hand out their own pointers.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

func (m *Message) Clone() *Message {
	c := *m
	return &c
}
