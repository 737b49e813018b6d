package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// SessionStore implements domain.SessionStore using SQLite.
// Expired rows are filtered on read and removed by DeleteExpired.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SQLite-backed SessionStore.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db.SqlDB}
}

func sessionUser(sess *domain.Session) (uuid.NullUUID, sql.NullString) {
	if sess.User == nil {
		return uuid.NullUUID{}, sql.NullString{}
	}
	return uuid.NullUUID{UUID: sess.User.ID, Valid: true}, sql.NullString{String: sess.User.Email, Valid: true}
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	userID, userEmail := sessionUser(sess)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_key, is_logged_in, user_id, user_email, csrf_token, flash, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.Key, sess.IsLoggedIn, userID, userEmail, sess.CSRFToken, sess.Flash,
		sess.ExpiresAt.UnixMilli(), sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update only touches a live row, so a session deleted by logout or a
// password reset stays deleted.
func (s *SessionStore) Update(ctx context.Context, sess *domain.Session) error {
	userID, userEmail := sessionUser(sess)
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_logged_in = ?, user_id = ?, user_email = ?, csrf_token = ?, flash = ?, expires_at = ?, updated_at = ?
		 WHERE session_key = ? AND expires_at > ?`,
		sess.IsLoggedIn, userID, userEmail, sess.CSRFToken, sess.Flash,
		sess.ExpiresAt.UnixMilli(), sess.UpdatedAt.UTC(),
		sess.Key, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	var (
		sess      domain.Session
		userID    uuid.NullUUID
		userEmail sql.NullString
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_key, is_logged_in, user_id, user_email, csrf_token, flash, expires_at, created_at, updated_at
		 FROM sessions WHERE session_key = ? AND expires_at > ?`,
		key, time.Now().UnixMilli(),
	).Scan(&sess.Key, &sess.IsLoggedIn, &userID, &userEmail, &sess.CSRFToken, &sess.Flash, &expiresAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if userID.Valid {
		sess.User = &domain.UserSnapshot{ID: userID.UUID, Email: userEmail.String}
	}
	sess.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_key = ?", key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
