package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

type Store struct {
	client *firestore.Client
}

var (
	_ domain.SessionStore = (*Store)(nil)
	_ domain.MessageStore = (*Store)(nil)
)

// NewStore creates a Firestore store.
// Uses the project passed (GCP_PROJECT).
func NewStore(ctx context.Context, projectID string, opts ...option.ClientOption) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreFromClient wraps an existing client, e.g. one obtained from a Firebase app.
func NewStoreFromClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

// sessions/{userId}/chats/{sessionId}
func (s *Store) sessionsCol(userID domain.UserID) *firestore.CollectionRef {
	return s.client.Collection("sessions").Doc(string(userID)).Collection("chats")
}

func (s *Store) sessionDoc(userID domain.UserID, id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol(userID).Doc(string(id))
}

// messages/{sessionId}/items/{messageId}
func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.client.Collection("messages").Doc(string(sessionID)).Collection("items")
}

func (s *Store) messageDoc(sessionID domain.SessionID, msgID domain.MessageID) *firestore.DocumentRef {
	return s.messagesCol(sessionID).Doc(string(msgID))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	Title         string    `firestore:"title"`
	CreatedAt     time.Time `firestore:"createdAt"`
	LastMessageAt time.Time `firestore:"lastMessageAt"`
}

type messageDoc struct {
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	Timestamp time.Time `firestore:"timestamp"`
}

var (
	sessionFields = []string{"title", "createdAt", "lastMessageAt"}
	messageFields = []string{"role", "content", "timestamp"}
)

// checkFields rejects documents carrying keys the record does not define.
// DataTo alone drops them silently.
func checkFields(data map[string]any, fields []string) error {
	for k := range data {
		if !slices.Contains(fields, k) {
			return fmt.Errorf("%w: unexpected field %q", domain.ErrInvalidRecord, k)
		}
	}
	return nil
}

func toSessionDoc(session *domain.Session) sessionDoc {
	return sessionDoc{
		Title:         session.Title,
		CreatedAt:     session.CreatedAt,
		LastMessageAt: session.LastMessageAt,
	}
}

func fromSessionDoc(userID domain.UserID, id string, doc sessionDoc) (*domain.Session, error) {
	sess := &domain.Session{
		ID:            domain.SessionID(id),
		UserID:        userID,
		Title:         doc.Title,
		CreatedAt:     doc.CreatedAt.UTC(),
		LastMessageAt: doc.LastMessageAt.UTC(),
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return sess, nil
}

func toMessageDoc(msg *domain.Message) messageDoc {
	return messageDoc{
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

func fromMessageDoc(sessionID domain.SessionID, id string, doc messageDoc) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        domain.MessageID(id),
		SessionID: sessionID,
		Role:      domain.Role(doc.Role),
		Content:   doc.Content,
		Timestamp: doc.Timestamp.UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	id := domain.SessionID(domain.NewID())

	if _, err := s.sessionDoc(session.UserID, id).Create(ctx, toSessionDoc(session)); err != nil {
		return domain.Unavailable("firestore CreateSession", err)
	}
	session.ID = id
	return nil
}

func (s *Store) GetSession(ctx context.Context, userID domain.UserID, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(userID, id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable("firestore GetSession", err)
	}

	if err := checkFields(snap.Data(), sessionFields); err != nil {
		return nil, domain.Unavailable("firestore GetSession", err)
	}
	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, domain.Unavailable("firestore GetSession decode", err)
	}
	sess, err := fromSessionDoc(userID, snap.Ref.ID, doc)
	if err != nil {
		return nil, domain.Unavailable("firestore GetSession", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, userID domain.UserID) (map[domain.SessionID]*domain.Session, error) {
	iter := s.sessionsCol(userID).Documents(ctx)
	defer iter.Stop()

	out := make(map[domain.SessionID]*domain.Session)
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, domain.Unavailable("firestore ListSessions", err)
		}

		if err := checkFields(snap.Data(), sessionFields); err != nil {
			return nil, domain.Unavailable("firestore ListSessions", err)
		}
		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, domain.Unavailable("decode sessionDoc", err)
		}
		sess, err := fromSessionDoc(userID, snap.Ref.ID, doc)
		if err != nil {
			return nil, domain.Unavailable("firestore ListSessions", err)
		}
		out[sess.ID] = sess
	}
	return out, nil
}

func (s *Store) TouchSession(ctx context.Context, userID domain.UserID, id domain.SessionID, at time.Time) error {
	_, err := s.sessionDoc(userID, id).Update(ctx, []firestore.Update{
		{Path: "lastMessageAt", Value: at},
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrNotFound
		}
		return domain.Unavailable("firestore TouchSession", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, userID domain.UserID, id domain.SessionID) error {
	// Deleting a missing document is not an error in Firestore.
	if _, err := s.sessionDoc(userID, id).Delete(ctx); err != nil {
		return domain.Unavailable("firestore DeleteSession", err)
	}
	return nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	id := domain.MessageID(domain.NewID())

	if _, err := s.messageDoc(msg.SessionID, id).Create(ctx, toMessageDoc(msg)); err != nil {
		return domain.Unavailable("firestore AppendMessage", err)
	}
	msg.ID = id
	return nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	iter := s.messagesCol(sessionID).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, domain.Unavailable("firestore ListMessages", err)
		}

		if err := checkFields(snap.Data(), messageFields); err != nil {
			return nil, domain.Unavailable("firestore ListMessages", err)
		}
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, domain.Unavailable("decode messageDoc", err)
		}
		msg, err := fromMessageDoc(sessionID, snap.Ref.ID, doc)
		if err != nil {
			return nil, domain.Unavailable("firestore ListMessages", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *Store) DeleteMessage(ctx context.Context, sessionID domain.SessionID, msgID domain.MessageID) error {
	if _, err := s.messageDoc(sessionID, msgID).Delete(ctx); err != nil {
		return domain.Unavailable("firestore DeleteMessage", err)
	}
	return nil
}

func (s *Store) DeleteMessages(ctx context.Context, sessionID domain.SessionID) error {
	refs, err := s.messagesCol(sessionID).DocumentRefs(ctx).GetAll()
	if err != nil {
		return domain.Unavailable("firestore DeleteMessages list", err)
	}
	if len(refs) == 0 {
		return nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return domain.Unavailable("firestore DeleteMessages enqueue", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return domain.Unavailable("firestore DeleteMessages", err)
		}
	}
	return nil
}
