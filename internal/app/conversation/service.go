package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

// Service relays user turns to the completion provider and persists both
// sides of every exchange.
type Service struct {
	llm          domain.CompletionProvider
	sessionStore domain.SessionStore
	messageStore domain.MessageStore
	locker       domain.SessionLocker
	now          func() time.Time

	historyLimit int
	llmTimeout   time.Duration
}

type Option func(*Service)

// WithHistoryLimit bounds the number of stored turns replayed to the
// provider. Zero or less replays the whole session.
func WithHistoryLimit(n int) Option {
	return func(s *Service) { s.historyLimit = n }
}

// WithCompletionTimeout bounds a single provider call. Zero means no bound.
func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Service) { s.llmTimeout = d }
}

// WithClock replaces the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	llm domain.CompletionProvider,
	sessionStore domain.SessionStore,
	messageStore domain.MessageStore,
	locker domain.SessionLocker,
	opts ...Option,
) *Service {
	s := &Service{
		llm:          llm,
		sessionStore: sessionStore,
		messageStore: messageStore,
		locker:       locker,
		now:          domain.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type SendMessageInput struct {
	SessionID domain.SessionID
	UserID    domain.UserID
	Text      string
}

type SendMessageOutput struct {
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
}

// SendMessage appends the user turn, replays the session history to the
// provider and appends the reply. Exchanges on one session are serialized.
// The exchange is detached from ctx cancellation so a disconnecting caller
// never leaves it half written.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	// No session lives at an empty id.
	if in.SessionID == "" {
		return nil, domain.ErrNotFound
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrInvalidInput)
	}

	ctx = context.WithoutCancel(ctx)
	log := observability.LoggerFromContext(ctx).With("session_id", in.SessionID)

	unlock, err := s.locker.Lock(ctx, in.SessionID)
	if err != nil {
		log.Error("failed to lock session", "error", err)
		return nil, err
	}
	defer unlock()

	if _, err := s.sessionStore.GetSession(ctx, in.UserID, in.SessionID); err != nil {
		if !domain.IsNotFound(err) {
			log.Error("failed to get session", "error", err)
		}
		return nil, err
	}

	log.Info("sending message", "length", len(in.Text))

	userMsg := &domain.Message{
		SessionID: in.SessionID,
		Role:      domain.RoleUser,
		Content:   in.Text,
		Timestamp: s.now(),
	}
	if err := s.messageStore.AppendMessage(ctx, userMsg); err != nil {
		log.Error("failed to append user message", "error", err)
		return nil, err
	}

	history, err := s.messageStore.ListMessages(ctx, in.SessionID)
	if err != nil {
		log.Error("failed to load history", "error", err)
		s.rollback(ctx, userMsg)
		return nil, err
	}
	SortMessages(history)
	turns := toTurns(window(history, s.historyLimit))

	replyText, err := s.complete(ctx, turns)
	if err != nil {
		log.Error("completion failed", "turns", len(turns), "error", err)
		s.rollback(ctx, userMsg)
		return nil, err
	}

	assistantMsg := &domain.Message{
		SessionID: in.SessionID,
		Role:      domain.RoleAssistant,
		Content:   replyText,
		Timestamp: s.now(),
	}
	if err := s.messageStore.AppendMessage(ctx, assistantMsg); err != nil {
		log.Error("failed to append assistant message", "error", err)
		s.rollback(ctx, userMsg)
		return nil, err
	}

	if err := s.sessionStore.TouchSession(ctx, in.UserID, in.SessionID, assistantMsg.Timestamp); err != nil {
		log.Error("failed to update session recency", "error", err)
		return nil, err
	}

	log.Info("send message completed", "turns", len(turns))

	return &SendMessageOutput{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

func (s *Service) complete(ctx context.Context, turns []domain.Turn) (string, error) {
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}

	text, err := s.llm.Complete(ctx, turns)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCompletionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrCompletionFailed, errors.New("provider returned empty text"))
	}
	return text, nil
}

// rollback removes a user turn whose exchange did not complete, so a retry
// does not replay it twice.
func (s *Service) rollback(ctx context.Context, msg *domain.Message) {
	if err := s.messageStore.DeleteMessage(ctx, msg.SessionID, msg.ID); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to roll back user message",
			"session_id", msg.SessionID,
			"message_id", msg.ID,
			"error", err,
		)
	}
}

// GetSessionMessages returns every message of a session owned by userID,
// sorted by timestamp.
func (s *Service) GetSessionMessages(
	ctx context.Context,
	userID domain.UserID,
	sessionID domain.SessionID,
) ([]*domain.Message, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	if _, err := s.sessionStore.GetSession(ctx, userID, sessionID); err != nil {
		if !domain.IsNotFound(err) {
			log.Error("failed to get session", "error", err)
		}
		return nil, err
	}

	msgs, err := s.messageStore.ListMessages(ctx, sessionID)
	if err != nil {
		log.Error("failed to get messages", "error", err)
		return nil, err
	}
	SortMessages(msgs)

	log.Info("fetched session messages", "message_count", len(msgs))
	return msgs, nil
}
