package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// ProductRepository implements domain.ProductRepository on Postgres.
type ProductRepository struct {
	db *sql.DB
}

const productColumns = `id, owner_id, title, price_cents, description, image_key, created_at, updated_at`

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate product id: %w", err)
		}
		p.ID = id
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (id, owner_id, title, price_cents, description, image_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		p.ID, p.OwnerID, p.Title, p.PriceCents, p.Description, p.ImageKey,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND owner_id = $2`, id, ownerID,
	).Scan(&p.ID, &p.OwnerID, &p.Title, &p.PriceCents, &p.Description, &p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.PriceCents, &p.Description, &p.ImageKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE products
		 SET title = $1, price_cents = $2, description = $3, image_key = $4, updated_at = now()
		 WHERE id = $5 AND owner_id = $6
		 RETURNING updated_at`,
		p.Title, p.PriceCents, p.Description, p.ImageKey, p.ID, p.OwnerID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return rowsOrNotFound(result, domain.ErrNotFound)
}
