package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record behind a session cookie.
// Key is the SHA-256 of the token held by the client; the token itself is
// never persisted.
type Session struct {
	Key        string
	IsLoggedIn bool
	User       *UserSnapshot
	CSRFToken  string
	Flash      string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserSnapshot is the identity captured at login.
type UserSnapshot struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// UserID returns the bound user ID, or uuid.Nil for anonymous sessions.
func (s *Session) UserID() uuid.UUID {
	if s == nil || !s.IsLoggedIn || s.User == nil {
		return uuid.Nil
	}
	return s.User.ID
}

// IsExpired reports whether the session expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists sessions. Implementations must drop or ignore
// sessions whose ExpiresAt has passed.
type SessionStore interface {
	// Create inserts a new session.
	Create(ctx context.Context, session *Session) error
	// Update rewrites a live session. It returns ErrNotFound when the key was
	// deleted or has expired, and never recreates it.
	Update(ctx context.Context, session *Session) error
	// Get returns ErrNotFound for unknown or expired keys.
	Get(ctx context.Context, key string) (*Session, error)
	// Delete removes the session; deleting an unknown key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteByUser removes every session bound to the user.
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	// DeleteExpired removes expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
