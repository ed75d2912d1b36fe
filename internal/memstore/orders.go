package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/google/uuid"
)

// OrderStore keeps orders in memory. A single mutex serializes every
// transition, which gives MarkPaid its exactly-once result.
type OrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates an empty order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[uuid.UUID]*domain.Order)}
}

func (s *OrderStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return domain.Conflict("order.create", "order already exists")
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (s *OrderStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListOrders returns one page of matching orders, newest first, and the
// total number of matches.
func (s *OrderStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	s.mu.Lock()
	var matched []domain.Order
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.IsPaid != nil && o.IsPaid != *filter.IsPaid {
			continue
		}
		matched = append(matched, *o.Clone())
	}
	s.mu.Unlock()

	sortNewestFirst(matched)
	total := len(matched)

	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *OrderStore) MarkPaid(ctx context.Context, id uuid.UUID, c domain.PaymentConfirmation, now time.Time) (*domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false, domain.ErrOrderNotFound
	}
	applied := o.ApplyPayment(c, now)
	return o.Clone(), applied, nil
}

func (s *OrderStore) UpdateFulfillment(ctx context.Context, id uuid.UUID, status domain.FulfillmentStatus, tracking *string, now time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	next := o.Clone()
	if err := next.ApplyFulfillment(status, tracking, now); err != nil {
		return nil, err
	}
	s.orders[id] = next
	return next.Clone(), nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderNumber > orders[j].OrderNumber
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
