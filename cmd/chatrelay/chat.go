package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/chatrelay/internal/adapters/auth"
	"github.com/PabloGalante/chatrelay/internal/chatclient"
	"github.com/PabloGalante/chatrelay/internal/config"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat against a running server",
		Long: `Open an interactive chat session against a chatrelay server.

Authenticate either with --user (a token is minted per request from
JWT_SECRET) or with --token (any bearer token the server accepts, such as
a Firebase ID token). Type /help for commands.`,
		RunE: runChat,
	}
	cmd.Flags().String("url", "", "server base url (default http://localhost:$PORT)")
	cmd.Flags().String("user", "", "user id to mint tokens for (jwt auth backend)")
	cmd.Flags().String("token", "", "static bearer token")
	cmd.Flags().String("session", "", "resume an existing session id")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	baseURL, _ := flags.GetString("url")
	user, _ := flags.GetString("user")
	token, _ := flags.GetString("token")
	sessionID, _ := flags.GetString("session")

	if (user == "") == (token == "") {
		return errors.New("exactly one of --user or --token is required")
	}

	var issuer *auth.Issuer
	if user != "" || baseURL == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if baseURL == "" {
			baseURL = "http://localhost:" + cfg.Port
		}
		if user != "" {
			issuer, err = auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
			if err != nil {
				return err
			}
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cell := chatclient.NewIdentityCell()
	updates := make(chan *chatclient.Identity)
	go func() { _ = cell.Listen(ctx, updates) }()

	r := &repl{
		client:     chatclient.NewClient(baseURL, cell),
		cell:       cell,
		identities: updates,
		issuer:     issuer,
		sessionID:  sessionID,
		in:         cmd.InOrStdin(),
		out:        cmd.OutOrStdout(),
	}

	initial := &chatclient.Identity{Tokens: chatclient.StaticToken(token)}
	if user != "" {
		initial = r.identityFor(user)
	}
	if err := r.signIn(ctx, initial); err != nil {
		return err
	}
	return r.run(ctx)
}

// repl is the interactive loop. A send that fails keeps its text as the
// draft so /retry can resend it.
type repl struct {
	client     *chatclient.Client
	cell       *chatclient.IdentityCell
	identities chan<- *chatclient.Identity
	issuer     *auth.Issuer

	sessionID string
	draft     string

	in  io.Reader
	out io.Writer
}

const helpText = `commands:
  /new [title]     start a new session
  /sessions        list sessions, most recent first
  /open <id>       switch to a session
  /history         show the current session
  /delete [id]     delete a session (default: current)
  /retry           resend the last message that failed
  /login <user>    switch identity (jwt only)
  /logout          sign out
  /quit            exit
anything else is sent as a message`

func (r *repl) run(ctx context.Context) error {
	if r.sessionID != "" {
		fmt.Fprintf(r.out, "resuming session %s\n", r.sessionID)
	}
	fmt.Fprintln(r.out, "type /help for commands")

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			r.send(ctx, line)
			continue
		}

		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch name {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(r.out, helpText)
		case "/new":
			r.newSession(ctx, arg)
		case "/sessions":
			r.listSessions(ctx)
		case "/open":
			if arg == "" {
				fmt.Fprintln(r.out, "usage: /open <id>")
				continue
			}
			r.sessionID = arg
			r.history(ctx)
		case "/history":
			r.history(ctx)
		case "/delete":
			r.deleteSession(ctx, arg)
		case "/retry":
			if r.draft == "" {
				fmt.Fprintln(r.out, "nothing to retry")
				continue
			}
			r.send(ctx, r.draft)
		case "/login":
			if r.issuer == nil || arg == "" {
				fmt.Fprintln(r.out, "usage: /login <user> (requires --user mode)")
				continue
			}
			if err := r.signIn(ctx, r.identityFor(arg)); err != nil {
				return err
			}
			r.sessionID, r.draft = "", ""
			fmt.Fprintf(r.out, "signed in as %s\n", arg)
		case "/logout":
			if err := r.signIn(ctx, nil); err != nil {
				return err
			}
			r.sessionID, r.draft = "", ""
			fmt.Fprintln(r.out, "signed out")
		default:
			fmt.Fprintf(r.out, "unknown command %s, try /help\n", name)
		}
	}
}

func (r *repl) identityFor(user string) *chatclient.Identity {
	return &chatclient.Identity{
		UserID: user,
		Tokens: auth.UserTokens{Issuer: r.issuer, UserID: domain.UserID(user)},
	}
}

// signIn hands id to the cell's listener and waits until it is applied.
func (r *repl) signIn(ctx context.Context, id *chatclient.Identity) error {
	select {
	case r.identities <- id:
	case <-ctx.Done():
		return ctx.Err()
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cur, _ := r.cell.Current(); cur == id {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *repl) send(ctx context.Context, text string) {
	if r.sessionID == "" {
		if !r.newSession(ctx, "") {
			r.draft = text
			return
		}
	}

	reply, err := r.client.SendMessage(ctx, r.sessionID, text)
	if err != nil {
		r.draft = text
		fmt.Fprintf(r.out, "send failed: %v\n", err)
		if chatclient.IsRetryable(err) {
			fmt.Fprintln(r.out, "your message was kept, /retry to resend it")
		}
		return
	}
	r.draft = ""
	fmt.Fprintf(r.out, "assistant: %s\n", reply)
}

func (r *repl) newSession(ctx context.Context, title string) bool {
	sess, err := r.client.CreateSession(ctx, title)
	if err != nil {
		fmt.Fprintf(r.out, "failed to create session: %v\n", err)
		return false
	}
	r.sessionID = sess.ID
	fmt.Fprintf(r.out, "session %s (%s)\n", sess.ID, sess.Title)
	return true
}

func (r *repl) listSessions(ctx context.Context) {
	sessions, err := r.client.ListSessions(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "failed to list sessions: %v\n", err)
		return
	}
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, "no sessions")
		return
	}
	for _, s := range chatclient.SortSessions(sessions) {
		marker := " "
		if s.ID == r.sessionID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s  %-24s  %s\n", marker, s.ID, s.Title, s.LastMessageAt.Local().Format(time.DateTime))
	}
}

func (r *repl) history(ctx context.Context) {
	if r.sessionID == "" {
		fmt.Fprintln(r.out, "no session open")
		return
	}
	msgs, err := r.client.GetMessages(ctx, r.sessionID)
	if err != nil {
		fmt.Fprintf(r.out, "failed to get messages: %v\n", err)
		return
	}
	for _, m := range chatclient.SortMessages(msgs) {
		fmt.Fprintf(r.out, "%s: %s\n", m.Role, m.Content)
	}
}

func (r *repl) deleteSession(ctx context.Context, id string) {
	if id == "" {
		id = r.sessionID
	}
	if id == "" {
		fmt.Fprintln(r.out, "no session open")
		return
	}
	if err := r.client.DeleteSession(ctx, id); err != nil {
		fmt.Fprintf(r.out, "failed to delete session: %v\n", err)
		return
	}
	if id == r.sessionID {
		r.sessionID = ""
	}
	fmt.Fprintf(r.out, "deleted %s\n", id)
}
