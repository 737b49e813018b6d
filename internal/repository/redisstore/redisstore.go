// Package redisstore keeps sessions in Redis. Each session is a JSON value
// whose key TTL tracks the session expiry, so Redis evicts expired sessions
// on its own. A per-user set indexes session keys for DeleteByUser.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second

	sessionPrefix = "shop:session:"
	userPrefix    = "shop:user_sessions:"
)

// Connect parses a Redis URL, tunes the pool and pings the server.
func Connect(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = readTimeout
	opts.WriteTimeout = writeTimeout

	client := redis.NewClient(opts)
	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("redis client connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// Ping verifies the client is healthy.
func Ping(ctx context.Context, client redis.Cmdable) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}

// record is the JSON shape stored under a session key.
type record struct {
	Key        string               `json:"key"`
	IsLoggedIn bool                 `json:"isLoggedIn"`
	User       *domain.UserSnapshot `json:"user,omitempty"`
	CSRFToken  string               `json:"csrfToken"`
	Flash      string               `json:"flash,omitempty"`
	ExpiresAt  time.Time            `json:"expiresAt"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// SessionStore implements domain.SessionStore on Redis.
type SessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore wraps a connected client.
func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func encode(sess *domain.Session) ([]byte, error) {
	body, err := json.Marshal(record{
		Key:        sess.Key,
		IsLoggedIn: sess.IsLoggedIn,
		User:       sess.User,
		CSRFToken:  sess.CSRFToken,
		Flash:      sess.Flash,
		ExpiresAt:  sess.ExpiresAt,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return body, nil
}

// index adds the session to its user's set. Sessions share one TTL, so the
// latest write carries the furthest expiry.
func index(ctx context.Context, pipe redis.Pipeliner, sess *domain.Session, ttl time.Duration) {
	if sess.User == nil {
		return
	}
	idx := userPrefix + sess.User.ID.String()
	pipe.SAdd(ctx, idx, sess.Key)
	pipe.Expire(ctx, idx, ttl)
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("redis: create session: already expired")
	}
	body, err := encode(sess)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionPrefix+sess.Key, body, ttl)
		index(ctx, pipe, sess, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: create session: %w", err)
	}
	return nil
}

// Update writes with SET XX, so a key removed by Delete or DeleteByUser is
// never recreated.
func (s *SessionStore) Update(ctx context.Context, sess *domain.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		if err := s.Delete(ctx, sess.Key); err != nil {
			return err
		}
		return domain.ErrNotFound
	}
	body, err := encode(sess)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, sessionPrefix+sess.Key, body, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: update session: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	if sess.User != nil {
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			index(ctx, pipe, sess, ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis: index session: %w", err)
		}
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	body, err := s.client.Get(ctx, sessionPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess := &domain.Session{
		Key:        rec.Key,
		IsLoggedIn: rec.IsLoggedIn,
		User:       rec.User,
		CSRFToken:  rec.CSRFToken,
		Flash:      rec.Flash,
		ExpiresAt:  rec.ExpiresAt,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	if sess.IsExpired(s.now()) {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, sessionPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	idx := userPrefix + userID.String()
	keys, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("redis: list user sessions: %w", err)
	}

	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, sessionPrefix+k)
	}
	del = append(del, idx)
	if err := s.client.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("redis: delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires session keys itself.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
