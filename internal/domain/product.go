package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry owned by exactly one user.
type Product struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	PriceCents  int64
	Description string
	ImageKey    string // FileStore key of the product image
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ImageURL is the public path the image is served from.
func (p *Product) ImageURL() string {
	return "/uploads/" + p.ImageKey
}

// Price renders PriceCents as a decimal amount.
func (p *Product) Price() string {
	return fmt.Sprintf("%d.%02d", p.PriceCents/100, p.PriceCents%100)
}

// ProductRepository defines persistence operations for products.
// Every read or write that a seller triggers is scoped by owner so a
// product of another seller is indistinguishable from a missing one.
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*Product, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Product, error)
	// Update writes title, price, description and image key. Returns
	// ErrNotFound if no product with the ID belongs to product.OwnerID.
	Update(ctx context.Context, product *Product) error
	// Delete returns ErrNotFound if no product with id belongs to ownerID.
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}
