package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// Guard decides whether an identity may act on a product.
type Guard struct {
	products domain.ProductRepository
}

// NewGuard creates a Guard reading through products.
func NewGuard(products domain.ProductRepository) *Guard {
	return &Guard{products: products}
}

// AssertOwner reports whether identity owns product.
func (g *Guard) AssertOwner(identity uuid.UUID, product *domain.Product) bool {
	return identity != uuid.Nil && product != nil && product.OwnerID == identity
}

// Load fetches productID on behalf of identity. Anonymous callers get
// ErrUnauthorized; products owned by someone else are indistinguishable from
// missing ones and yield ErrNotFound.
func (g *Guard) Load(ctx context.Context, identity, productID uuid.UUID) (*domain.Product, error) {
	if identity == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	p, err := g.products.FindByIDAndOwner(ctx, productID, identity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	if !g.AssertOwner(identity, p) {
		return nil, domain.ErrNotFound
	}
	return p, nil
}
