package httpadapter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/app/session"
	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

// Handler serves the /api/chat routes.
type Handler struct {
	sessions *session.Service
	chat     *conversation.Service
}

func NewHandler(sessions *session.Service, chat *conversation.Service) *Handler {
	return &Handler{sessions: sessions, chat: chat}
}

// RegisterRoutes mounts the chat API under /api/chat behind the bearer gate.
func (h *Handler) RegisterRoutes(e *echo.Echo, verifier domain.TokenVerifier) {
	e.GET("/", h.Root)
	e.GET("/healthz", h.Health)

	g := e.Group("/api/chat", bearerGate(verifier))
	g.POST("/session", h.CreateSession)
	g.GET("/sessions", h.ListSessions)
	g.POST("/message", h.SendMessage)
	g.GET("/messages/:sessionId", h.GetMessages)
	g.DELETE("/session/:sessionId", h.DeleteSession)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

// Timestamps travel as epoch milliseconds.

type createSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type sessionResponse struct {
	Title         string `json:"title"`
	CreatedAt     int64  `json:"createdAt"`
	LastMessageAt int64  `json:"lastMessageAt,omitempty"`
}

type createSessionResponse struct {
	Success   bool            `json:"success"`
	SessionID string          `json:"sessionId"`
	Session   sessionResponse `json:"session"`
}

type listSessionsResponse struct {
	Success  bool                       `json:"success"`
	Sessions map[string]sessionResponse `json:"sessions"`
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type messageResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type listMessagesResponse struct {
	Success  bool                       `json:"success"`
	Messages map[string]messageResponse `json:"messages"`
}

// textResponse covers both the send reply and the delete acknowledgement.
type textResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "AI Chatbot API is running!"})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateSession(c echo.Context) error {
	userID, ok := domain.UserIDFromContext(c.Request().Context())
	if !ok {
		return noToken(c)
	}

	var req createSessionRequest
	if err := bindOptional(c, &req); err != nil {
		return writeError(c, err, "Failed to create session")
	}

	out, err := h.sessions.Create(c.Request().Context(), session.CreateInput{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		return writeError(c, err, "Failed to create session")
	}

	return c.JSON(http.StatusOK, createSessionResponse{
		Success:   true,
		SessionID: string(out.Session.ID),
		Session:   toSessionResponse(out.Session),
	})
}

func (h *Handler) ListSessions(c echo.Context) error {
	userID, ok := domain.UserIDFromContext(c.Request().Context())
	if !ok {
		return noToken(c)
	}

	sessions, err := h.sessions.List(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err, "Failed to get sessions")
	}

	resp := listSessionsResponse{Success: true, Sessions: make(map[string]sessionResponse, len(sessions))}
	for id, s := range sessions {
		resp.Sessions[string(id)] = toSessionResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SendMessage(c echo.Context) error {
	userID, ok := domain.UserIDFromContext(c.Request().Context())
	if !ok {
		return noToken(c)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmtInvalid("invalid JSON body"), "Failed to send message")
	}
	out, err := h.chat.SendMessage(c.Request().Context(), conversation.SendMessageInput{
		SessionID: domain.SessionID(req.SessionID),
		UserID:    userID,
		Text:      req.Message,
	})
	if err != nil {
		return writeError(c, err, "Failed to send message")
	}

	return c.JSON(http.StatusOK, textResponse{Success: true, Message: out.AssistantMessage.Content})
}

func (h *Handler) GetMessages(c echo.Context) error {
	userID, ok := domain.UserIDFromContext(c.Request().Context())
	if !ok {
		return noToken(c)
	}

	msgs, err := h.chat.GetSessionMessages(c.Request().Context(), userID, domain.SessionID(c.Param("sessionId")))
	if err != nil {
		return writeError(c, err, "Failed to get messages")
	}

	resp := listMessagesResponse{Success: true, Messages: make(map[string]messageResponse, len(msgs))}
	for _, m := range msgs {
		resp.Messages[string(m.ID)] = toMessageResponse(m)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	userID, ok := domain.UserIDFromContext(c.Request().Context())
	if !ok {
		return noToken(c)
	}

	if err := h.sessions.Delete(c.Request().Context(), userID, domain.SessionID(c.Param("sessionId"))); err != nil {
		return writeError(c, err, "Failed to delete session")
	}

	return c.JSON(http.StatusOK, textResponse{Success: true, Message: "Session deleted"})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		Title:         s.Title,
		CreatedAt:     s.CreatedAt.UnixMilli(),
		LastMessageAt: s.LastMessageAt.UnixMilli(),
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
	}
}

func noToken(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "No token provided"})
}

// bindOptional binds a JSON body when one is present; an empty body is valid.
func bindOptional(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := c.Bind(v); err != nil {
		return fmtInvalid("invalid JSON body")
	}
	return nil
}

func fmtInvalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

// writeError maps a service error to its status code. Anything that is not a
// caller mistake is reported with the fixed message for the route.
func writeError(c echo.Context, err error, failure string) error {
	log := observability.LoggerFromContext(c.Request().Context())

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid token"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Session not found"})
	case errors.Is(err, domain.ErrCompletionFailed):
		log.Error(failure, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: failure, Detail: err.Error()})
	default:
		log.Error(failure, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: failure})
	}
}
