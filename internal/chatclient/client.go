// Package chatclient is a typed client for the /api/chat routes.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// Session is a session as seen by the client.
type Session struct {
	ID            string
	Title         string
	CreatedAt     time.Time
	LastMessageAt time.Time
}

// Message is a stored message as seen by the client.
type Message struct {
	ID        string
	Role      string
	Content   string
	Timestamp time.Time
}

// APIError is a non-2xx response. It unwraps to the matching domain error
// so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("chat api %d: %s (%s)", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("chat api %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	}
	if e.Detail != "" {
		return domain.ErrCompletionFailed
	}
	return nil
}

// Client calls the chat API with a fresh bearer token per request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	identity   *IdentityCell
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the API rooted at baseURL
// (for example http://localhost:5000).
func NewClient(baseURL string, identity *IdentityCell, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/api/chat",
		httpClient: &http.Client{
			// Completions can take a while.
			Timeout: 2 * time.Minute,
		},
		identity: identity,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type sessionWire struct {
	Title         string `json:"title"`
	CreatedAt     int64  `json:"createdAt"`
	LastMessageAt int64  `json:"lastMessageAt"`
}

func (w sessionWire) toSession(id string) Session {
	s := Session{ID: id, Title: w.Title, CreatedAt: domain.FromMillis(w.CreatedAt)}
	s.LastMessageAt = s.CreatedAt
	if w.LastMessageAt != 0 {
		s.LastMessageAt = domain.FromMillis(w.LastMessageAt)
	}
	return s
}

type messageWire struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// CreateSession creates a session; an empty title gets the server default.
func (c *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	var resp struct {
		SessionID string      `json:"sessionId"`
		Session   sessionWire `json:"session"`
	}
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	if err := c.do(ctx, http.MethodPost, "/session", body, &resp); err != nil {
		return Session{}, err
	}
	return resp.Session.toSession(resp.SessionID), nil
}

// ListSessions returns the caller's sessions keyed by id.
func (c *Client) ListSessions(ctx context.Context) (map[string]Session, error) {
	var resp struct {
		Sessions map[string]sessionWire `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]Session, len(resp.Sessions))
	for id, w := range resp.Sessions {
		out[id] = w.toSession(id)
	}
	return out, nil
}

// SendMessage sends one user turn and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	req := map[string]string{"sessionId": sessionID, "message": text}
	if err := c.do(ctx, http.MethodPost, "/message", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// GetMessages returns the session's messages keyed by id. Use SortMessages
// for display order.
func (c *Client) GetMessages(ctx context.Context, sessionID string) (map[string]Message, error) {
	var resp struct {
		Messages map[string]messageWire `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]Message, len(resp.Messages))
	for id, w := range resp.Messages {
		out[id] = Message{ID: id, Role: w.Role, Content: w.Content, Timestamp: domain.FromMillis(w.Timestamp)}
	}
	return out, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.identity.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Detail = body.Detail
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// IsRetryable reports whether a failed send is worth retrying unchanged.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, ErrSignedOut)
}
