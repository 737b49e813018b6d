package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User represents a registered seller or shopper.
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string
	Cart             []CartItem
	ResetToken       *string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CartItem is a product reference held in a user's cart.
type CartItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// HasLiveResetToken reports whether the user holds a reset token that has
// not yet expired at now.
func (u *User) HasLiveResetToken(now time.Time) bool {
	return u.ResetToken != nil && u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(now)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetResetToken stores a reset token and its expiry for the user.
	SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Time) error
	// GetByResetToken returns the user holding token, provided it expires
	// after now. Returns ErrNotFound otherwise.
	GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error)
	// ConsumeResetToken replaces the password hash and clears both reset
	// fields in one statement, only if the user still holds token and it
	// expires after now. Returns ErrTokenInvalidOrExpired when nothing matched.
	ConsumeResetToken(ctx context.Context, userID uuid.UUID, token, passwordHash string, now time.Time) error
}
