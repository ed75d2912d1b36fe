package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukerupert/emporium/internal/address"
	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/events"
	"github.com/dukerupert/emporium/internal/inventory"
	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/dukerupert/emporium/internal/pricing"
	"github.com/dukerupert/emporium/internal/telemetry"
	"github.com/google/uuid"
)

const (
	// releaseTimeout bounds compensation after a failed checkout.
	releaseTimeout = 10 * time.Second

	// persistTimeout bounds the order insert once stock is held. The insert
	// is detached from the caller so a dropped client cannot strand it.
	persistTimeout = 10 * time.Second
)

// errPersistUnknown means the order insert failed and a follow-up read could
// not tell whether it committed. Reservations are kept in that case.
var errPersistUnknown = errors.New("order persistence outcome unknown")

// CheckoutService turns a list of requested products into a persisted,
// unpaid order.
type CheckoutService interface {
	// PlaceOrder reserves stock for every line, prices the order and
	// persists it. Either all reservations are kept and the order exists, or
	// none are kept and an error is returned.
	PlaceOrder(ctx context.Context, params PlaceOrderParams) (*domain.Order, error)

	// PlaceOrderFromCart is PlaceOrder using the caller's saved cart.
	PlaceOrderFromCart(ctx context.Context, params PlaceOrderParams) (*domain.Order, error)
}

// PlaceOrderParams contains parameters for placing an order.
type PlaceOrderParams struct {
	User            *domain.User
	Lines           []domain.CartLine
	ShippingAddress address.Address
	PaymentMethod   string
	Notes           string
}

// CheckoutDeps are the collaborators of the checkout service. Queue,
// Publisher and Metrics are optional.
type CheckoutDeps struct {
	Products      domain.ProductStore
	Stock         inventory.StockStore
	Orders        domain.OrderStore
	Carts         domain.CartStore
	AddrValidator address.Validator
	Queue         jobs.Queue
	Publisher     events.Publisher
	Metrics       *telemetry.BusinessMetrics
	Policy        pricing.Policy
	// Timeout bounds a whole PlaceOrder call. Zero means no deadline.
	Timeout time.Duration
	Logger  *slog.Logger
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	products      domain.ProductStore
	ledger        *inventory.Ledger
	orders        domain.OrderStore
	carts         domain.CartStore
	addrValidator address.Validator
	queue         jobs.Queue
	publisher     events.Publisher
	metrics       *telemetry.BusinessMetrics
	policy        pricing.Policy
	timeout       time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(deps CheckoutDeps) CheckoutService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := deps.AddrValidator
	if validator == nil {
		validator = address.NewBasicValidator()
	}
	return &checkoutService{
		products:      deps.Products,
		ledger:        inventory.NewLedger(deps.Stock),
		orders:        deps.Orders,
		carts:         deps.Carts,
		addrValidator: validator,
		queue:         deps.Queue,
		publisher:     publisher,
		metrics:       deps.Metrics,
		policy:        deps.Policy,
		timeout:       deps.Timeout,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *checkoutService) PlaceOrderFromCart(ctx context.Context, params PlaceOrderParams) (*domain.Order, error) {
	if params.User == nil {
		return nil, domain.ErrAuthRequired
	}
	lines, err := s.carts.ReadCart(ctx, params.User.ID)
	if err != nil {
		return nil, domain.Internal(err, "checkout.read_cart", "failed to read cart")
	}
	params.Lines = lines
	return s.PlaceOrder(ctx, params)
}

func (s *checkoutService) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*domain.Order, error) {
	const op = "checkout.place"

	// Validation runs before any side effect.
	if params.User == nil {
		return nil, domain.ErrAuthRequired
	}
	if len(params.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, l := range params.Lines {
		if l.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
	}
	method, err := domain.ParsePaymentMethod(params.PaymentMethod)
	if err != nil {
		return nil, err
	}
	shipTo, err := s.validateAddress(ctx, params.ShippingAddress)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.metrics.CheckoutStart()
	lines := domain.MergeLines(params.Lines)

	products := make(map[uuid.UUID]*domain.Product, len(lines))
	for _, l := range lines {
		p, err := s.products.GetProduct(ctx, l.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				s.metrics.CheckoutFail("product_not_found")
				return nil, &domain.Error{
					Code:    domain.ENOTFOUND,
					Op:      op,
					Message: fmt.Sprintf("Product not found: %s", l.ProductID),
					Err:     domain.ErrProductNotFound,
				}
			}
			s.metrics.CheckoutFail("store_error")
			return nil, s.interrupted(ctx, err, op, "failed to load product")
		}
		products[l.ProductID] = p
	}

	reserved, err := s.reserveAll(ctx, lines, products)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := s.buildOrder(params, method, shipTo, lines, products, now)

	if err := ctx.Err(); err != nil {
		s.releaseAll(ctx, reserved)
		s.metrics.CheckoutFail("cancelled")
		return nil, s.interrupted(ctx, err, op, "checkout cancelled")
	}
	if err := s.persist(ctx, order); err != nil {
		if errors.Is(err, errPersistUnknown) {
			s.logger.Error("order may be saved, keeping reservations",
				"order_id", order.ID,
				"error", err,
			)
		} else {
			s.releaseAll(ctx, reserved)
		}
		s.metrics.CheckoutFail("persist_failed")
		return nil, s.interrupted(ctx, err, op, "failed to save order")
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", order.UserID,
		"total", order.TotalPrice.StringFixed(pricing.Places),
		"payment_method", order.PaymentMethod,
	)
	s.metrics.CheckoutComplete(string(method), order.TotalPrice.InexactFloat64(), len(order.Items))

	bg := context.WithoutCancel(ctx)
	s.clearCart(bg, order.UserID)
	if err := s.publisher.Publish(bg, events.NewOrderEvent(events.TypeOrderCreated, order, now)); err != nil {
		s.logger.Warn("failed to publish order event", "order_id", order.ID, "error", err)
	}

	return order, nil
}

// persist inserts the order on a detached context. A failed insert may still
// have committed, so the order is looked up before the caller compensates.
// It returns nil when the order is stored, the insert error when it is
// definitely absent, and errPersistUnknown otherwise.
func (s *checkoutService) persist(ctx context.Context, order *domain.Order) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := s.orders.CreateOrder(pctx, order)
	if err == nil {
		return nil
	}

	_, gerr := s.orders.GetOrder(pctx, order.ID)
	switch {
	case gerr == nil:
		s.logger.Warn("order insert reported an error but the order is stored",
			"order_id", order.ID,
			"error", err,
		)
		return nil
	case errors.Is(gerr, domain.ErrOrderNotFound):
		return err
	default:
		return fmt.Errorf("%w: insert: %w, lookup: %w", errPersistUnknown, err, gerr)
	}
}

// reserveAll takes stock for every line in product id order, so two
// checkouts over overlapping products always contend in the same sequence.
// On failure everything already taken is given back.
func (s *checkoutService) reserveAll(ctx context.Context, lines []domain.CartLine, products map[uuid.UUID]*domain.Product) ([]domain.CartLine, error) {
	const op = "checkout.reserve"

	sorted := append([]domain.CartLine(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	reserved := make([]domain.CartLine, 0, len(sorted))
	for _, l := range sorted {
		if err := ctx.Err(); err != nil {
			s.releaseAll(ctx, reserved)
			s.metrics.CheckoutFail("cancelled")
			return nil, s.interrupted(ctx, err, op, "checkout cancelled")
		}

		err := s.ledger.Reserve(ctx, l.ProductID, l.Quantity)
		if err == nil {
			reserved = append(reserved, l)
			continue
		}

		s.releaseAll(ctx, reserved)

		var ise *inventory.InsufficientStockError
		if errors.As(err, &ise) {
			ise.ProductName = products[l.ProductID].Name
			s.metrics.StockConflict()
			s.metrics.CheckoutFail("insufficient_stock")
			return nil, ise
		}
		if errors.Is(err, domain.ErrProductNotFound) {
			s.metrics.CheckoutFail("product_not_found")
			return nil, err
		}
		s.metrics.CheckoutFail("store_error")
		return nil, s.interrupted(ctx, err, op, "failed to reserve stock")
	}
	return reserved, nil
}

// releaseAll undoes reservations. It runs detached from ctx so a cancelled
// request still gives its stock back.
func (s *checkoutService) releaseAll(ctx context.Context, reserved []domain.CartLine) {
	if len(reserved) == 0 {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	released := 0
	for _, l := range reserved {
		if err := s.ledger.Release(rctx, l.ProductID, l.Quantity); err != nil {
			s.logger.Error("failed to release reservation",
				"product_id", l.ProductID,
				"quantity", l.Quantity,
				"error", err,
			)
			continue
		}
		released++
	}
	s.metrics.ReservationsReleased(released)
}

func (s *checkoutService) buildOrder(
	params PlaceOrderParams,
	method domain.PaymentMethod,
	shipTo address.Address,
	lines []domain.CartLine,
	products map[uuid.UUID]*domain.Product,
	now time.Time,
) *domain.Order {
	items := make([]domain.OrderLineItem, len(lines))
	priceLines := make([]pricing.Line, len(lines))
	for i, l := range lines {
		p := products[l.ProductID]
		items[i] = domain.OrderLineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			Price:     p.Price,
			Quantity:  l.Quantity,
		}
		priceLines[i] = pricing.Line{UnitPrice: p.Price, Quantity: l.Quantity}
	}
	b := s.policy.Calculate(priceLines)

	id := uuid.New()
	return &domain.Order{
		ID:              id,
		OrderNumber:     domain.GenerateOrderNumber(id, now),
		UserID:          params.User.ID,
		CustomerEmail:   params.User.Email,
		Items:           items,
		ShippingAddress: shipTo,
		PaymentMethod:   method,
		Notes:           params.Notes,
		ItemsPrice:      b.ItemsPrice,
		TaxPrice:        b.TaxPrice,
		ShippingPrice:   b.ShippingPrice,
		TotalPrice:      b.TotalPrice,
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// clearCart empties the cart without failing the order. A failed clear is
// retried in the background.
func (s *checkoutService) clearCart(ctx context.Context, userID uuid.UUID) {
	err := s.carts.ClearCart(ctx, userID)
	if err == nil {
		return
	}
	s.metrics.CartClearFailure()
	s.logger.Warn("failed to clear cart after checkout", "user_id", userID, "error", err)

	if s.queue == nil {
		return
	}
	if err := jobs.EnqueueCartClear(ctx, s.queue, userID); err != nil {
		s.logger.Error("failed to enqueue cart clear", "user_id", userID, "error", err)
		return
	}
	s.metrics.JobEnqueued(jobs.TypeCartClear)
}

func (s *checkoutService) validateAddress(ctx context.Context, addr address.Address) (address.Address, error) {
	const op = "checkout.validate_address"

	result, err := s.addrValidator.Validate(ctx, addr)
	if err != nil {
		return address.Address{}, domain.Internal(err, op, "failed to validate address")
	}
	if !result.IsValid {
		verr := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(result.Errors))}
		for _, fe := range result.Errors {
			verr.Fields["shippingAddress."+fe.Field] = fe.Message
		}
		return address.Address{}, verr
	}
	if result.NormalizedAddress != nil {
		return *result.NormalizedAddress, nil
	}
	return addr, nil
}

// interrupted classifies a failure. Cancellation and deadline errors match
// ErrCheckoutAborted so callers can tell them from store faults.
func (s *checkoutService) interrupted(ctx context.Context, err error, op, message string) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(abortedError{err}, domain.EINTERNAL, op, "Checkout was interrupted")
	}
	return domain.Internal(err, op, message)
}

// abortedError reads as its cause and matches ErrCheckoutAborted.
type abortedError struct{ err error }

func (e abortedError) Error() string        { return e.err.Error() }
func (e abortedError) Unwrap() error        { return e.err }
func (e abortedError) Is(target error) bool { return target == ErrCheckoutAborted }
