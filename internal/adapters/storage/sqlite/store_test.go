package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := domain.Now()

	sess := &domain.Session{UserID: "u1", Title: "New Chat", CreatedAt: now, LastMessageAt: now}
	require.NoError(t, store.CreateSession(ctx, sess))
	require.NotEmpty(t, sess.ID)

	got, err := store.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	_, err = store.GetSession(ctx, "u2", sess.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	later := now.Add(90 * time.Second)
	require.NoError(t, store.TouchSession(ctx, "u1", sess.ID, later))
	assert.ErrorIs(t, store.TouchSession(ctx, "u2", sess.ID, later), domain.ErrNotFound)

	list, err := store.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Contains(t, list, sess.ID)
	assert.Equal(t, later, list[sess.ID].LastMessageAt)
	assert.Equal(t, now, list[sess.ID].CreatedAt)

	require.NoError(t, store.DeleteSession(ctx, "u1", sess.ID))
	require.NoError(t, store.DeleteSession(ctx, "u1", sess.ID))
	list, err = store.ListSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := domain.Now()

	user := &domain.Message{SessionID: "s1", Role: domain.RoleUser, Content: "Hello", Timestamp: now}
	reply := &domain.Message{SessionID: "s1", Role: domain.RoleAssistant, Content: "Hi!", Timestamp: now.Add(time.Millisecond)}
	require.NoError(t, store.AppendMessage(ctx, user))
	require.NoError(t, store.AppendMessage(ctx, reply))

	msgs, err := store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []*domain.Message{user, reply}, msgs)

	require.NoError(t, store.DeleteMessage(ctx, "s1", user.ID))
	msgs, err = store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []*domain.Message{reply}, msgs)

	require.NoError(t, store.DeleteMessages(ctx, "s1"))
	msgs, err = store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStoreRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.AppendMessage(ctx, &domain.Message{SessionID: "s1", Role: "system", Content: "x", Timestamp: domain.Now()})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
