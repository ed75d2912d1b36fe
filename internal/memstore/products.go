// Package memstore holds in-process implementations of the order pipeline's
// stores. It backs local development and tests; nothing survives a restart.
package memstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/inventory"
	"github.com/google/uuid"
)

type productEntry struct {
	product domain.Product
	stock   atomic.Int64
}

// ProductStore keeps products in memory. Stock changes are lock-free
// compare-and-swap loops.
type ProductStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*productEntry
}

var (
	_ domain.ProductStore   = (*ProductStore)(nil)
	_ inventory.StockStore = (*ProductStore)(nil)
)

// NewProductStore creates an empty product store.
func NewProductStore() *ProductStore {
	return &ProductStore{products: make(map[uuid.UUID]*productEntry)}
}

// Put inserts or replaces a product, including its stock.
func (s *ProductStore) Put(p domain.Product) {
	e := &productEntry{product: p}
	e.stock.Store(int64(p.Stock))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = e
}

func (s *ProductStore) entry(id uuid.UUID) (*productEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.products[id]
	return e, ok
}

// GetProduct returns a copy of the product with its current stock.
func (s *ProductStore) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p := e.product
	p.Stock = int(e.stock.Load())
	return &p, nil
}

// ApplyStockDelta adds delta when the result stays at or above guardMin.
func (s *ProductStore) ApplyStockDelta(ctx context.Context, id uuid.UUID, delta, guardMin int) error {
	e, ok := s.entry(id)
	if !ok {
		return domain.ErrProductNotFound
	}
	for {
		cur := e.stock.Load()
		next := cur + int64(delta)
		if next < int64(guardMin) {
			return inventory.ErrDeltaRejected
		}
		if e.stock.CompareAndSwap(cur, next) {
			return nil
		}
	}
}
