package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/pricing"
)

// OrderStore implements domain.OrderStore.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_number, user_id, customer_email,
	ship_full_name, ship_street, ship_city, ship_state, ship_zip_code, ship_country, ship_phone,
	payment_method, items_price_cents, tax_price_cents, shipping_price_cents, total_price_cents,
	status, is_paid, paid_at, payment_id, payment_status, payment_update_time, payment_email, payment_source,
	is_delivered, delivered_at, tracking_number, notes, created_at, updated_at`

func (s *OrderStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	const op = "order.create"

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (
				id, order_number, user_id, customer_email,
				ship_full_name, ship_street, ship_city, ship_state, ship_zip_code, ship_country, ship_phone,
				payment_method, items_price_cents, tax_price_cents, shipping_price_cents, total_price_cents,
				status, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
			o.ID, o.OrderNumber, o.UserID, o.CustomerEmail,
			o.ShippingAddress.FullName, o.ShippingAddress.Street, o.ShippingAddress.City,
			o.ShippingAddress.State, o.ShippingAddress.ZipCode, o.ShippingAddress.Country, o.ShippingAddress.Phone,
			string(o.PaymentMethod),
			pricing.ToCents(o.ItemsPrice), pricing.ToCents(o.TaxPrice),
			pricing.ToCents(o.ShippingPrice), pricing.ToCents(o.TotalPrice),
			string(o.Status), o.Notes, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, li := range o.Items {
			batch.Queue(`
				INSERT INTO order_items (order_id, position, product_id, name, image, price_cents, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				o.ID, i, li.ProductID, li.Name, li.Image, pricing.ToCents(li.Price), li.Quantity,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(op, "order already exists")
		}
		return err
	}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, s.pool, id, false)
}

// getOrder loads an order and its items. forUpdate locks the order row for
// the rest of the transaction.
func getOrder(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	items, err := loadItems(ctx, q, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListOrdersByUser uses idx_orders_user_created.
func (s *OrderStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, order_number DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, rows)
}

func (s *OrderStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	status := string(filter.Status)

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2::boolean IS NULL OR is_paid = $2)`,
		status, filter.IsPaid,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2::boolean IS NULL OR is_paid = $2)
		ORDER BY created_at DESC, order_number DESC
		LIMIT $3 OFFSET $4`,
		status, filter.IsPaid, limit, max(filter.Offset, 0),
	)
	if err != nil {
		return nil, 0, err
	}
	orders, err := s.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// MarkPaid is a conditional UPDATE on is_paid = false. Concurrent callers
// serialize on the row lock and only the first sees a row affected. The
// column changes mirror domain.Order.ApplyPayment.
func (s *OrderStore) MarkPaid(ctx context.Context, id uuid.UUID, c domain.PaymentConfirmation, now time.Time) (*domain.Order, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET is_paid = true,
		    paid_at = $2,
		    payment_id = $3,
		    payment_status = $4,
		    payment_update_time = $5,
		    payment_email = $6,
		    payment_source = $7,
		    status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
		    updated_at = $2
		WHERE id = $1 AND is_paid = false`,
		id, now, c.TransactionID, c.Status, c.UpdateTime, c.EmailAddress, string(c.Source),
	)
	if err != nil {
		return nil, false, err
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return order, tag.RowsAffected() == 1, nil
}

func (s *OrderStore) UpdateFulfillment(ctx context.Context, id uuid.UUID, status domain.FulfillmentStatus, tracking *string, now time.Time) (*domain.Order, error) {
	var order *domain.Order
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		o, err := getOrder(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := o.ApplyFulfillment(status, tracking, now); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET status = $2, is_delivered = $3, delivered_at = $4, tracking_number = $5, updated_at = $6
			WHERE id = $1`,
			o.ID, string(o.Status), o.IsDelivered, o.DeliveredAt, o.TrackingNumber, o.UpdatedAt,
		)
		order = o
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) collect(ctx context.Context, rows pgx.Rows) ([]domain.Order, error) {
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return domain.Order{}, err
		}
		return *o, nil
	})
	if err != nil || len(orders) == 0 {
		return orders, err
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := loadItems(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                                   domain.Order
		method, status                      string
		itemsC, taxC, shipC, totalC         int64
		payID, payStatus, payTime, payEmail *string
		paySource                           *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.CustomerEmail,
		&o.ShippingAddress.FullName, &o.ShippingAddress.Street, &o.ShippingAddress.City,
		&o.ShippingAddress.State, &o.ShippingAddress.ZipCode, &o.ShippingAddress.Country, &o.ShippingAddress.Phone,
		&method, &itemsC, &taxC, &shipC, &totalC,
		&status, &o.IsPaid, &o.PaidAt, &payID, &payStatus, &payTime, &payEmail, &paySource,
		&o.IsDelivered, &o.DeliveredAt, &o.TrackingNumber, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.FulfillmentStatus(status)
	o.ItemsPrice = pricing.FromCents(itemsC)
	o.TaxPrice = pricing.FromCents(taxC)
	o.ShippingPrice = pricing.FromCents(shipC)
	o.TotalPrice = pricing.FromCents(totalC)
	if o.IsPaid {
		o.PaymentResult = &domain.PaymentResult{
			ID:           deref(payID),
			Status:       deref(payStatus),
			UpdateTime:   deref(payTime),
			EmailAddress: deref(payEmail),
			Source:       domain.PaymentSource(deref(paySource)),
		}
	}
	return &o, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderLineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT order_id, product_id, name, image, price_cents, quantity
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, orderIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]domain.OrderLineItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID uuid.UUID
			li      domain.OrderLineItem
			cents   int64
		)
		if err := rows.Scan(&orderID, &li.ProductID, &li.Name, &li.Image, &cents, &li.Quantity); err != nil {
			return nil, err
		}
		li.Price = pricing.FromCents(cents)
		items[orderID] = append(items[orderID], li)
	}
	return items, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
