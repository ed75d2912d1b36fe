package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/emporium/internal/address"
	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/events"
	"github.com/dukerupert/emporium/internal/memstore"
	"github.com/dukerupert/emporium/internal/pricing"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockPublisher implements events.Publisher for testing
type mockPublisher struct {
	PublishFunc func(ctx context.Context, event events.OrderEvent) error

	mu     sync.Mutex
	events []events.OrderEvent
}

func (m *mockPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
}

// ============================================================================
// Fixtures
// ============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAddress() address.Address {
	return address.Address{
		FullName: "Ada Lovelace",
		Street:   "12 St James's Square",
		City:     "London",
		State:    "London",
		ZipCode:  "SW1Y 4JH",
		Country:  "GB",
	}
}

func testCustomer() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "ada@example.com", Role: domain.RoleCustomer}
}

func testAdmin() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "ops@example.com", Role: domain.RoleAdmin}
}

// fixture wires the services over in-memory stores.
type fixture struct {
	products  *memstore.ProductStore
	carts     *memstore.CartStore
	orders    *memstore.OrderStore
	queue     *memstore.JobQueue
	publisher *mockPublisher
}

func newFixture() *fixture {
	return &fixture{
		products:  memstore.NewProductStore(),
		carts:     memstore.NewCartStore(),
		orders:    memstore.NewOrderStore(),
		queue:     memstore.NewJobQueue(),
		publisher: &mockPublisher{},
	}
}

func (f *fixture) checkoutDeps() CheckoutDeps {
	return CheckoutDeps{
		Products:  f.products,
		Stock:     f.products,
		Orders:    f.orders,
		Carts:     f.carts,
		Queue:     f.queue,
		Publisher: f.publisher,
		Policy:    pricing.DefaultPolicy(),
		Logger:    discardLogger(),
	}
}

func (f *fixture) checkout() CheckoutService {
	return NewCheckoutService(f.checkoutDeps())
}

func (f *fixture) addProduct(name, price string, stock int) uuid.UUID {
	id := uuid.New()
	f.products.Put(domain.Product{
		ID:    id,
		Name:  name,
		Image: "/images/" + name + ".jpg",
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	return id
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.products.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// placeOrder creates an unpaid order for user worth 32.00.
func (f *fixture) placeOrder(t *testing.T, user *domain.User, method string) *domain.Order {
	t.Helper()
	mug := f.addProduct("mug", "20.00", 10)
	order, err := f.checkout().PlaceOrder(context.Background(), PlaceOrderParams{
		User:            user,
		Lines:           []domain.CartLine{{ProductID: mug, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   method,
	})
	require.NoError(t, err)
	return order
}
