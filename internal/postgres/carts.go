package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/emporium/internal/domain"
)

// CartStore implements domain.CartStore.
type CartStore struct {
	pool *pgxpool.Pool
}

var _ domain.CartStore = (*CartStore)(nil)

// NewCartStore creates a new PostgreSQL-backed cart store.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// AddItem adds quantity of a product to the cart, merging with an existing
// line.
func (s *CartStore) AddItem(ctx context.Context, userID uuid.UUID, line domain.CartLine) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		userID, line.ProductID, line.Quantity,
	)
	return err
}

func (s *CartStore) ReadCart(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at, product_id`, userID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CartLine, error) {
		var l domain.CartLine
		err := row.Scan(&l.ProductID, &l.Quantity)
		return l, err
	})
}

func (s *CartStore) ClearCart(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
