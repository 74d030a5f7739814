// Package sqlite implements the session and message stores on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// Store implements domain.SessionStore and domain.MessageStore.
type Store struct {
	db *sql.DB
}

var (
	_ domain.SessionStore = (*Store)(nil)
	_ domain.MessageStore = (*Store)(nil)
)

// NewStore opens the database and runs migrations.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_message_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			PRIMARY KEY (session_id, message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_ts ON messages(session_id, timestamp)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// SessionStore

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	id := domain.SessionID(domain.NewID())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, session_id, title, created_at, last_message_at) VALUES (?, ?, ?, ?, ?)`,
		string(session.UserID), string(id), session.Title,
		session.CreatedAt.UnixMilli(), session.LastMessageAt.UnixMilli(),
	)
	if err != nil {
		return domain.Unavailable("sqlite create session", err)
	}
	session.ID = id
	return nil
}

func (s *Store) GetSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, title, created_at, last_message_at FROM sessions WHERE user_id = ? AND session_id = ?`,
		string(userID), string(sessionID),
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Unavailable("sqlite get session", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, userID domain.UserID) (map[domain.SessionID]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, title, created_at, last_message_at FROM sessions WHERE user_id = ?`,
		string(userID),
	)
	if err != nil {
		return nil, domain.Unavailable("sqlite list sessions", err)
	}
	defer rows.Close()

	out := make(map[domain.SessionID]*domain.Session)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, domain.Unavailable("sqlite list sessions", err)
		}
		out[sess.ID] = sess
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("sqlite list sessions", err)
	}
	return out, nil
}

func (s *Store) TouchSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_message_at = ? WHERE user_id = ? AND session_id = ?`,
		at.UnixMilli(), string(userID), string(sessionID),
	)
	if err != nil {
		return domain.Unavailable("sqlite touch session", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? AND session_id = ?`,
		string(userID), string(sessionID),
	)
	if err != nil {
		return domain.Unavailable("sqlite delete session", err)
	}
	return nil
}

// MessageStore

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	id := domain.MessageID(domain.NewID())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, message_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		string(msg.SessionID), string(id), string(msg.Role), msg.Content, msg.Timestamp.UnixMilli(),
	)
	if err != nil {
		return domain.Unavailable("sqlite append message", err)
	}
	msg.ID = id
	return nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, role, content, timestamp FROM messages WHERE session_id = ? ORDER BY message_id`,
		string(sessionID),
	)
	if err != nil {
		return nil, domain.Unavailable("sqlite list messages", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		var (
			m  domain.Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &ts); err != nil {
			return nil, domain.Unavailable("sqlite list messages", err)
		}
		m.Timestamp = domain.FromMillis(ts)
		if err := m.Validate(); err != nil {
			return nil, domain.Unavailable("sqlite list messages", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable("sqlite list messages", err)
	}
	return out, nil
}

func (s *Store) DeleteMessage(ctx context.Context, sessionID domain.SessionID, messageID domain.MessageID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ? AND message_id = ?`,
		string(sessionID), string(messageID),
	)
	if err != nil {
		return domain.Unavailable("sqlite delete message", err)
	}
	return nil
}

func (s *Store) DeleteMessages(ctx context.Context, sessionID domain.SessionID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, string(sessionID))
	if err != nil {
		return domain.Unavailable("sqlite delete messages", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		sess                 domain.Session
		createdAt, lastMsgAt int64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &createdAt, &lastMsgAt); err != nil {
		return nil, err
	}
	sess.CreatedAt = domain.FromMillis(createdAt)
	sess.LastMessageAt = domain.FromMillis(lastMsgAt)
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return &sess, nil
}
