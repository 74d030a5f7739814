package chatclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSignedOut is returned when a call is made with no current identity.
var ErrSignedOut = errors.New("chatclient: no signed-in identity")

// TokenSource yields a bearer token. It is asked once per outbound call, so
// implementations refresh or re-mint as needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Identity is one signed-in user and the way to get credentials for it.
type Identity struct {
	UserID string
	Tokens TokenSource
}

// IdentityCell holds the current identity. Listen is its only writer;
// everyone else reads through it on every call instead of keeping a copy.
type IdentityCell struct {
	mu        sync.RWMutex
	current   *Identity
	listening atomic.Bool
}

func NewIdentityCell() *IdentityCell {
	return &IdentityCell{}
}

// NewStaticCell returns a cell already holding id, for callers that never
// change identity.
func NewStaticCell(id *Identity) *IdentityCell {
	return &IdentityCell{current: id}
}

// Current returns the identity at the time of the call.
func (c *IdentityCell) Current() (*Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current != nil
}

// Token resolves a fresh token from the current identity.
func (c *IdentityCell) Token(ctx context.Context) (string, error) {
	id, ok := c.Current()
	if !ok || id.Tokens == nil {
		return "", ErrSignedOut
	}
	return id.Tokens.Token(ctx)
}

// Listening reports whether a listener is attached.
func (c *IdentityCell) Listening() bool {
	return c.listening.Load()
}

// Listen applies identity changes until ctx is done or updates is closed.
// A nil identity signs out. Only one listener may run per cell.
func (c *IdentityCell) Listen(ctx context.Context, updates <-chan *Identity) error {
	if !c.listening.CompareAndSwap(false, true) {
		return errors.New("chatclient: identity cell already has a listener")
	}
	defer c.listening.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-updates:
			if !ok {
				return nil
			}
			c.mu.Lock()
			c.current = id
			c.mu.Unlock()
		}
	}
}
