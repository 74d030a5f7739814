package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

func TestSessionStoreScopedByUser(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	now := domain.Now()

	sess := &domain.Session{UserID: "u1", Title: "t", CreatedAt: now, LastMessageAt: now}
	require.NoError(t, store.CreateSession(ctx, sess))
	require.NotEmpty(t, sess.ID)

	got, err := store.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	_, err = store.GetSession(ctx, "u2", sess.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	others, err := store.ListSessions(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)

	later := now.Add(time.Minute)
	require.NoError(t, store.TouchSession(ctx, "u1", sess.ID, later))
	assert.ErrorIs(t, store.TouchSession(ctx, "u2", sess.ID, later), domain.ErrNotFound)

	owned, err := store.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Contains(t, owned, sess.ID)
	assert.Equal(t, later, owned[sess.ID].LastMessageAt)

	require.NoError(t, store.DeleteSession(ctx, "u1", sess.ID))
	require.NoError(t, store.DeleteSession(ctx, "u1", sess.ID), "delete is idempotent")
	_, err = store.GetSession(ctx, "u1", sess.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	now := domain.Now()

	sess := &domain.Session{UserID: "u1", Title: "original", CreatedAt: now, LastMessageAt: now}
	require.NoError(t, store.CreateSession(ctx, sess))

	got, err := store.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := store.GetSession(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestMessageStoreAppendListDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMessageStore()
	now := domain.Now()

	first := &domain.Message{SessionID: "s1", Role: domain.RoleUser, Content: "hi", Timestamp: now}
	second := &domain.Message{SessionID: "s1", Role: domain.RoleAssistant, Content: "hello", Timestamp: now}
	other := &domain.Message{SessionID: "s2", Role: domain.RoleUser, Content: "elsewhere", Timestamp: now}
	for _, m := range []*domain.Message{first, second, other} {
		require.NoError(t, store.AppendMessage(ctx, m))
	}
	assert.Less(t, string(first.ID), string(second.ID))

	msgs, err := store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []*domain.Message{first, second}, msgs)

	require.NoError(t, store.DeleteMessage(ctx, "s1", first.ID))
	msgs, err = store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []*domain.Message{second}, msgs)

	require.NoError(t, store.DeleteMessages(ctx, "s1"))
	msgs, err = store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	remaining, err := store.ListMessages(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
