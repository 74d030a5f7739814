package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/adapters/auth"
	httpadapter "github.com/PabloGalante/chatrelay/internal/adapters/http"
	"github.com/PabloGalante/chatrelay/internal/adapters/lock"
	"github.com/PabloGalante/chatrelay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/app/session"
	"github.com/PabloGalante/chatrelay/internal/chatclient"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

// flakyLLM fails its first call and answers every later one.
type flakyLLM struct {
	calls atomic.Int32
}

func (f *flakyLLM) Complete(_ context.Context, turns []domain.Turn) (string, error) {
	if f.calls.Add(1) == 1 {
		return "", errors.New("upstream unavailable")
	}
	return "reply to " + turns[len(turns)-1].Text, nil
}

func runREPL(t *testing.T, provider domain.CompletionProvider, input string) string {
	t.Helper()

	const secret = "repl-secret"
	verifier, err := auth.NewJWTVerifier(secret, "chatrelay")
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(secret, "chatrelay", time.Hour)
	require.NoError(t, err)

	sessions := memory.NewSessionStore()
	messages := memory.NewMessageStore()
	locker := lock.NewLocal()
	srv := httptest.NewServer(httpadapter.NewServer(
		httpadapter.ServerConfig{Verifier: verifier},
		session.NewService(sessions, messages, locker),
		conversation.NewService(provider, sessions, messages, locker),
	))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cell := chatclient.NewIdentityCell()
	updates := make(chan *chatclient.Identity)
	go func() { _ = cell.Listen(ctx, updates) }()

	var out bytes.Buffer
	r := &repl{
		client:     chatclient.NewClient(srv.URL, cell),
		cell:       cell,
		identities: updates,
		issuer:     issuer,
		in:         strings.NewReader(input),
		out:        &out,
	}
	require.NoError(t, r.signIn(ctx, r.identityFor("alice")))
	require.NoError(t, r.run(ctx))
	return out.String()
}

func TestREPLConversation(t *testing.T) {
	out := runREPL(t, answering(), "Hello\n/history\n/sessions\n/quit\n")

	assert.Contains(t, out, "assistant: reply to Hello")
	assert.Contains(t, out, "user: Hello\nassistant: reply to Hello")
	assert.Contains(t, out, "New Chat")
}

func TestREPLRetryKeepsDraft(t *testing.T) {
	out := runREPL(t, &flakyLLM{}, "Hello\n/retry\n/history\n/quit\n")

	assert.Contains(t, out, "send failed")
	assert.Contains(t, out, "/retry to resend")
	assert.Contains(t, out, "assistant: reply to Hello")
	assert.Equal(t, 1, strings.Count(out, "user: Hello"))
}

func TestREPLSwitchesIdentity(t *testing.T) {
	out := runREPL(t, answering(), "Hello\n/login bob\n/sessions\n/logout\n/sessions\n/quit\n")

	assert.Contains(t, out, "signed in as bob")
	assert.Contains(t, out, "no sessions")
	assert.Contains(t, out, "signed out")
	assert.Contains(t, out, chatclient.ErrSignedOut.Error())
}

// answering returns a flakyLLM past its failing call.
func answering() *flakyLLM {
	f := &flakyLLM{}
	f.calls.Store(1)
	return f
}
