package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/events"
	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/dukerupert/emporium/internal/telemetry"
	"github.com/google/uuid"
)

// Admin listing page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// maxOffset keeps (page-1)*limit far from overflow on any platform.
	maxOffset = 1 << 30
)

// OrderService provides order reads and admin fulfillment.
type OrderService interface {
	// GetOrder returns an order to its owner or an admin.
	GetOrder(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Order, error)

	// ListMyOrders returns the caller's orders, newest first.
	ListMyOrders(ctx context.Context, user *domain.User) ([]domain.Order, error)

	// ListOrders returns a page of all orders. Admin only.
	ListOrders(ctx context.Context, user *domain.User, params ListOrdersParams) (*OrderPage, error)

	// UpdateFulfillment moves an order along the fulfillment axis. Admin only.
	UpdateFulfillment(ctx context.Context, user *domain.User, id uuid.UUID, params UpdateFulfillmentParams) (*domain.Order, error)
}

// ListOrdersParams filters and paginates the admin listing. Page is 1-based.
type ListOrdersParams struct {
	Status string
	IsPaid *bool
	Page   int
	Limit  int
}

// OrderPage is one page of an admin listing.
type OrderPage struct {
	Orders []domain.Order
	Page   int
	Pages  int
	Total  int
}

// UpdateFulfillmentParams contains the admin's requested change. An empty
// Status keeps the current one.
type UpdateFulfillmentParams struct {
	Status         string
	TrackingNumber *string
}

// orderService implements OrderService.
type orderService struct {
	orders    domain.OrderStore
	queue     jobs.Queue
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService instance. queue, publisher and
// metrics may be nil.
func NewOrderService(orders domain.OrderStore, queue jobs.Queue, publisher events.Publisher, metrics *telemetry.BusinessMetrics, logger *slog.Logger) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &orderService{
		orders:    orders,
		queue:     queue,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *orderService) GetOrder(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Order, error) {
	if user == nil {
		return nil, domain.ErrAuthRequired
	}
	order, err := s.load(ctx, "order.get", id)
	if err != nil {
		return nil, err
	}
	if !user.CanView(order) {
		return nil, domain.ErrNotOrderOwner
	}
	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, user *domain.User) ([]domain.Order, error) {
	if user == nil {
		return nil, domain.ErrAuthRequired
	}
	orders, err := s.orders.ListOrdersByUser(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, "order.list_mine", "failed to list orders")
	}
	return orders, nil
}

func (s *orderService) ListOrders(ctx context.Context, user *domain.User, params ListOrdersParams) (*OrderPage, error) {
	const op = "order.list"

	if user == nil {
		return nil, domain.ErrAuthRequired
	}
	if !user.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}

	status := domain.FulfillmentStatus(params.Status)
	if status != "" && !status.Valid() {
		return nil, domain.Invalid(op, "Unknown status filter")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	page := max(params.Page, 1)
	if page-1 > maxOffset/limit {
		return nil, domain.Invalid(op, "Page is out of range")
	}

	orders, total, err := s.orders.ListOrders(ctx, domain.OrderFilter{
		Status: status,
		IsPaid: params.IsPaid,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}

	return &OrderPage{
		Orders: orders,
		Page:   page,
		Pages:  (total + limit - 1) / limit,
		Total:  total,
	}, nil
}

func (s *orderService) UpdateFulfillment(ctx context.Context, user *domain.User, id uuid.UUID, params UpdateFulfillmentParams) (*domain.Order, error) {
	const op = "order.update_fulfillment"

	if user == nil {
		return nil, domain.ErrAuthRequired
	}
	if !user.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	status := domain.FulfillmentStatus(params.Status)
	if status != "" && !status.AdminSettable() {
		return nil, domain.ErrInvalidStatus
	}
	if status == "" && params.TrackingNumber == nil {
		return nil, ErrNothingToUpdate
	}

	before, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order, err := s.orders.UpdateFulfillment(ctx, id, status, params.TrackingNumber, now)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Code != domain.EINTERNAL {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to update order")
	}

	s.logger.Info("order fulfillment updated",
		"order_id", order.ID,
		"from", before.Status,
		"to", order.Status,
		"admin_id", user.ID,
	)
	s.metrics.FulfillmentUpdate(string(order.Status))

	bg := context.WithoutCancel(ctx)
	if err := s.publisher.Publish(bg, events.NewOrderEvent(events.TypeOrderFulfilled, order, now)); err != nil {
		s.logger.Warn("failed to publish order event", "order_id", order.ID, "error", err)
	}
	if order.Status == domain.StatusShipped && before.Status != domain.StatusShipped && s.queue != nil {
		if err := jobs.EnqueueOrderShippedEmail(bg, s.queue, order.ID); err != nil {
			s.logger.Error("failed to enqueue order shipped email", "order_id", order.ID, "error", err)
		} else {
			s.metrics.JobEnqueued(jobs.TypeOrderShippedEmail)
		}
	}
	return order, nil
}

func (s *orderService) load(ctx context.Context, op string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	return order, nil
}
