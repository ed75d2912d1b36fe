package memstore

import (
	"context"
	"sync"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/google/uuid"
)

// CartStore keeps carts in memory.
type CartStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID][]domain.CartLine

	// ClearErr, when set, is returned by ClearCart to simulate an outage.
	ClearErr error
}

var _ domain.CartStore = (*CartStore)(nil)

// NewCartStore creates an empty cart store.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[uuid.UUID][]domain.CartLine)}
}

// SetCart replaces a user's cart.
func (s *CartStore) SetCart(userID uuid.UUID, lines []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = append([]domain.CartLine(nil), lines...)
}

func (s *CartStore) ReadCart(ctx context.Context, userID uuid.UUID) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartLine(nil), s.carts[userID]...), nil
}

func (s *CartStore) ClearCart(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClearErr != nil {
		return s.ClearErr
	}
	delete(s.carts, userID)
	return nil
}
