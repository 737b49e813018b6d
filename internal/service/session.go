package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// SessionService issues, resolves and destroys server-side sessions and owns
// the per-session CSRF token.
type SessionService struct {
	store         domain.SessionStore
	ttl           time.Duration
	touchInterval time.Duration
	now           func() time.Time
}

// NewSessionService creates a SessionService. Sessions live for ttl and are
// extended when used more than touchInterval after their last write.
func NewSessionService(store domain.SessionStore, ttl, touchInterval time.Duration) *SessionService {
	return &SessionService{store: store, ttl: ttl, touchInterval: touchInterval, now: time.Now}
}

// Resolve returns the live session for a client token. Unknown, expired or
// empty tokens yield domain.ErrNotFound.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	sess, err := s.store.Get(ctx, SessionKey(token))
	if err != nil {
		return nil, err
	}
	now := s.now()
	if sess.IsExpired(now) {
		return nil, domain.ErrNotFound
	}

	if now.Sub(sess.UpdatedAt) >= s.touchInterval {
		sess.ExpiresAt = now.Add(s.ttl)
		sess.UpdatedAt = now
		if err := s.store.Update(ctx, sess); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrNotFound
			}
			slog.WarnContext(ctx, "failed to extend session", "error", err)
		}
	}
	return sess, nil
}

// Start creates an anonymous session carrying a fresh CSRF token and returns
// the token the client must present.
func (s *SessionService) Start(ctx context.Context) (string, *domain.Session, error) {
	return s.issue(ctx, nil)
}

// Login binds user to a brand new session with a new CSRF token, then drops
// prev. The previous key is never reused.
func (s *SessionService) Login(ctx context.Context, prev *domain.Session, user *domain.User) (string, *domain.Session, error) {
	token, sess, err := s.issue(ctx, &domain.UserSnapshot{ID: user.ID, Email: user.Email})
	if err != nil {
		return "", nil, err
	}
	if prev != nil {
		if err := s.store.Delete(ctx, prev.Key); err != nil {
			slog.WarnContext(ctx, "failed to delete pre-login session", "error", err)
		}
	}
	return token, sess, nil
}

func (s *SessionService) issue(ctx context.Context, user *domain.UserSnapshot) (string, *domain.Session, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	csrf, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	sess := &domain.Session{
		Key:        SessionKey(token),
		IsLoggedIn: user != nil,
		User:       user,
		CSRFToken:  csrf,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	return token, sess, nil
}

// EnsureCSRF returns the session's CSRF token, minting one if it has none.
func (s *SessionService) EnsureCSRF(ctx context.Context, sess *domain.Session) (string, error) {
	if sess.CSRFToken != "" {
		return sess.CSRFToken, nil
	}
	csrf, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	sess.CSRFToken = csrf
	sess.UpdatedAt = s.now()
	if err := s.store.Update(ctx, sess); err != nil {
		return "", fmt.Errorf("save csrf token: %w", err)
	}
	return csrf, nil
}

// ValidateCSRF compares presented against the session's token in constant
// time.
func (s *SessionService) ValidateCSRF(sess *domain.Session, presented string) error {
	if sess == nil || sess.CSRFToken == "" || presented == "" {
		return domain.ErrInvalidCSRFToken
	}
	if subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(presented)) != 1 {
		return domain.ErrInvalidCSRFToken
	}
	return nil
}

// SetFlash stores a one-shot message shown on the next page. It returns
// domain.ErrNotFound when the session has been destroyed meanwhile.
func (s *SessionService) SetFlash(ctx context.Context, sess *domain.Session, msg string) error {
	sess.Flash = msg
	sess.UpdatedAt = s.now()
	if err := s.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("save flash: %w", err)
	}
	return nil
}

// PopFlash returns and clears the flash message. A failed clear is logged;
// the message may then show twice.
func (s *SessionService) PopFlash(ctx context.Context, sess *domain.Session) string {
	if sess == nil || sess.Flash == "" {
		return ""
	}
	msg := sess.Flash
	sess.Flash = ""
	sess.UpdatedAt = s.now()
	if err := s.store.Update(ctx, sess); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "failed to clear flash", "error", err)
	}
	return msg
}

// Destroy removes the session server-side.
func (s *SessionService) Destroy(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return nil
	}
	if err := s.store.Delete(ctx, sess.Key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DestroyUser removes every session bound to userID.
func (s *SessionService) DestroyUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired sessions from stores that do not expire them
// on their own.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}
