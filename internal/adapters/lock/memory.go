// Package lock serializes message exchanges per session.
package lock

import (
	"context"
	"sync"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// Local is an in-process keyed mutex. Entries are dropped once no caller
// holds or waits on them, so the map does not grow with every session ever seen.
type Local struct {
	mu    sync.Mutex
	slots map[domain.SessionID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

var _ domain.SessionLocker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{slots: make(map[domain.SessionID]*slot)}
}

func (l *Local) Lock(ctx context.Context, sessionID domain.SessionID) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[sessionID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(sessionID, s)
		})
	}, nil
}

func (l *Local) release(sessionID domain.SessionID, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, sessionID)
	}
}
