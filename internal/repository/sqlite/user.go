package sqlite

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

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db.SqlDB}
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

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, cart, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, string(cart), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token = ?, reset_token_expiry = ?, updated_at = ? WHERE id = ?`,
		token, expiry.UnixMilli(), time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token = ? AND reset_token_expiry > ?`,
		token, now.UnixMilli(),
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by reset token: %w", err)
	}
	return user, nil
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, userID uuid.UUID, token, passwordHash string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = ?, reset_token = NULL, reset_token_expiry = NULL, updated_at = ?
		 WHERE id = ? AND reset_token = ? AND reset_token_expiry > ?`,
		passwordHash, now.UTC(), userID, token, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTokenInvalidOrExpired
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user   domain.User
		cart   string
		token  sql.NullString
		expiry sql.NullInt64
	)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &cart, &token, &expiry, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cart), &user.Cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if token.Valid && expiry.Valid {
		t := token.String
		e := time.UnixMilli(expiry.Int64).UTC()
		user.ResetToken = &t
		user.ResetTokenExpiry = &e
	}
	return &user, nil
}
