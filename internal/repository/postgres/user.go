package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// UserRepository implements domain.UserRepository on Postgres.
type UserRepository struct {
	db *sql.DB
}

const userColumns = `id, email, password_hash, cart, reset_token, reset_token_expiry, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate user id: %w", err)
		}
		user.ID = id
	}
	if user.Cart == nil {
		user.Cart = []domain.CartItem{}
	}
	cart, err := json.Marshal(user.Cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash, cart)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		user.ID, user.Email, user.PasswordHash, string(cart),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token = $1 AND reset_token_expiry > $2`,
		token, now)
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token = $1, reset_token_expiry = $2, updated_at = now() WHERE id = $3`,
		token, expiry, userID,
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return rowsOrNotFound(result, domain.ErrNotFound)
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, userID uuid.UUID, token, passwordHash string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = $1, reset_token = NULL, reset_token_expiry = NULL, updated_at = now()
		 WHERE id = $2 AND reset_token = $3 AND reset_token_expiry > $4`,
		passwordHash, userID, token, now,
	)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	return rowsOrNotFound(result, domain.ErrTokenInvalidOrExpired)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var (
		user   domain.User
		cart   []byte
		token  sql.NullString
		expiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &cart, &token, &expiry, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if err := json.Unmarshal(cart, &user.Cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if token.Valid && expiry.Valid {
		t, e := token.String, expiry.Time.UTC()
		user.ResetToken = &t
		user.ResetTokenExpiry = &e
	}
	return &user, nil
}
