package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/inventory"
	"github.com/dukerupert/emporium/internal/pricing"
)

// ProductStore implements domain.ProductStore and inventory.StockStore.
type ProductStore struct {
	pool *pgxpool.Pool
}

// Compile-time checks.
var (
	_ domain.ProductStore   = (*ProductStore)(nil)
	_ inventory.StockStore = (*ProductStore)(nil)
)

// NewProductStore creates a new PostgreSQL-backed product store.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// CreateProduct inserts a catalog entry. Used for seeding.
func (s *ProductStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, image, price_cents, stock)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Image, pricing.ToCents(p.Price), p.Stock,
	)
	if err != nil {
		return domain.Internal(err, "product.create", "failed to create product")
	}
	return nil
}

func (s *ProductStore) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var (
		p     domain.Product
		cents int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, image, price_cents, stock
		FROM products
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Image, &cents, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	p.Price = pricing.FromCents(cents)
	return &p, nil
}

// ApplyStockDelta is a single conditional UPDATE, so the guard check and the
// write cannot interleave with another checkout.
func (s *ProductStore) ApplyStockDelta(ctx context.Context, id uuid.UUID, delta, guardMin int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2::bigint, updated_at = now()
		WHERE id = $1 AND stock + $2::bigint >= $3::bigint`,
		id, delta, guardMin,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return inventory.ErrDeltaRejected
}
