package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// SessionStore implements domain.SessionStore on Postgres.
type SessionStore struct {
	db *sql.DB
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.Key, sess.IsLoggedIn, userID, userEmail, sess.CSRFToken, sess.Flash,
		sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SessionStore) Update(ctx context.Context, sess *domain.Session) error {
	userID, userEmail := sessionUser(sess)
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_logged_in = $1, user_id = $2, user_email = $3, csrf_token = $4, flash = $5, expires_at = $6, updated_at = $7
		 WHERE session_key = $8 AND expires_at > now()`,
		sess.IsLoggedIn, userID, userEmail, sess.CSRFToken, sess.Flash,
		sess.ExpiresAt, sess.UpdatedAt, sess.Key,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return rowsOrNotFound(result, domain.ErrNotFound)
}

func (s *SessionStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	var (
		sess      domain.Session
		userID    uuid.NullUUID
		userEmail sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_key, is_logged_in, user_id, user_email, csrf_token, flash, expires_at, created_at, updated_at
		 FROM sessions WHERE session_key = $1 AND expires_at > now()`, key,
	).Scan(&sess.Key, &sess.IsLoggedIn, &userID, &userEmail, &sess.CSRFToken, &sess.Flash, &sess.ExpiresAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if userID.Valid {
		sess.User = &domain.UserSnapshot{ID: userID.UUID, Email: userEmail.String}
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = $1`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
