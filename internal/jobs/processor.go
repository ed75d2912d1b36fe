package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/email"
	"github.com/dukerupert/emporium/internal/pricing"
)

// Mailer sends order notifications. *email.Service satisfies it.
type Mailer interface {
	SendOrderPaid(ctx context.Context, data email.OrderPaidEmail) error
	SendOrderShipped(ctx context.Context, data email.OrderShippedEmail) error
}

// Processor runs jobs by type.
type Processor struct {
	carts  domain.CartStore
	orders domain.OrderStore
	mailer Mailer
	logger *slog.Logger
}

// NewProcessor creates a processor. A nil mailer makes email jobs succeed
// without sending, for environments without SMTP.
func NewProcessor(carts domain.CartStore, orders domain.OrderStore, mailer Mailer, logger *slog.Logger) *Processor {
	return &Processor{
		carts:  carts,
		orders: orders,
		mailer: mailer,
		logger: logger,
	}
}

// Process runs a single job.
func (p *Processor) Process(ctx context.Context, job *Job) error {
	switch job.Type {
	case TypeCartClear:
		var payload CartClearPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return badPayload(job, err)
		}
		return p.carts.ClearCart(ctx, payload.UserID)

	case TypeOrderPaidEmail:
		order, err := p.loadOrder(ctx, job)
		if err != nil {
			return err
		}
		if p.mailer == nil {
			p.logger.Debug("mailer disabled, skipping email", "job_type", job.Type, "order_id", order.ID)
			return nil
		}
		return p.mailer.SendOrderPaid(ctx, orderPaidEmail(order))

	case TypeOrderShippedEmail:
		order, err := p.loadOrder(ctx, job)
		if err != nil {
			return err
		}
		if p.mailer == nil {
			p.logger.Debug("mailer disabled, skipping email", "job_type", job.Type, "order_id", order.ID)
			return nil
		}
		return p.mailer.SendOrderShipped(ctx, email.OrderShippedEmail{
			To:             order.CustomerEmail,
			OrderNumber:    order.OrderNumber,
			CustomerName:   order.ShippingAddress.FullName,
			TrackingNumber: order.TrackingNumber,
		})
	}

	return domain.Errorf(domain.EINVALID, "jobs.process", "unknown job type: %s", job.Type)
}

func badPayload(job *Job, err error) error {
	return &domain.Error{Code: domain.EINVALID, Op: "jobs.process", Message: "malformed " + job.Type + " payload", Err: err}
}

func (p *Processor) loadOrder(ctx context.Context, job *Job) (*domain.Order, error) {
	var payload OrderEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, badPayload(job, err)
	}
	return p.orders.GetOrder(ctx, payload.OrderID)
}

func orderPaidEmail(o *domain.Order) email.OrderPaidEmail {
	items := make([]email.OrderItem, len(o.Items))
	for i, li := range o.Items {
		items[i] = email.OrderItem{
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.Price.StringFixed(pricing.Places),
			LineTotal: li.LineTotal().StringFixed(pricing.Places),
		}
	}

	data := email.OrderPaidEmail{
		To:            o.CustomerEmail,
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.ShippingAddress.FullName,
		Items:         items,
		ItemsPrice:    o.ItemsPrice.StringFixed(pricing.Places),
		TaxPrice:      o.TaxPrice.StringFixed(pricing.Places),
		ShippingPrice: o.ShippingPrice.StringFixed(pricing.Places),
		TotalPrice:    o.TotalPrice.StringFixed(pricing.Places),
	}
	if o.PaidAt != nil {
		data.PaidAt = *o.PaidAt
	}
	return data
}
