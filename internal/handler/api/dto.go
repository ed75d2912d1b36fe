package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/emporium/internal/address"
	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/pricing"
	"github.com/dukerupert/emporium/internal/service"
)

// Request bodies. The shipping address is checked by the checkout service so
// its field errors come back keyed as shippingAddress.<field>.

type orderItemRequest struct {
	Product  string `json:"product" validate:"required,uuid"`
	Quantity int    `json:"quantity"`
}

type placeOrderRequest struct {
	OrderItems      []orderItemRequest `json:"orderItems" validate:"dive"`
	ShippingAddress address.Address    `json:"shippingAddress" validate:"-"`
	PaymentMethod   string             `json:"paymentMethod"`
	Notes           string             `json:"notes" validate:"max=1000"`
}

// lines converts the request items. Product ids were validated as uuids.
func (r placeOrderRequest) lines() []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(r.OrderItems))
	for _, it := range r.OrderItems {
		lines = append(lines, domain.CartLine{
			ProductID: uuid.MustParse(it.Product),
			Quantity:  it.Quantity,
		})
	}
	return lines
}

type checkoutRequest struct {
	ShippingAddress address.Address `json:"shippingAddress" validate:"-"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

// payRequest is the capture result the browser received from the payment
// provider.
type payRequest struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

type statusRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"trackingNumber" validate:"omitempty,max=100"`
}

type createIntentRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}

// Responses. Money is rendered as fixed two-place decimal strings.

type orderItemResponse struct {
	Product  uuid.UUID `json:"product"`
	Name     string    `json:"name"`
	Image    string    `json:"image"`
	Price    string    `json:"price"`
	Quantity int       `json:"quantity"`
}

type orderResponse struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"orderNumber"`
	User            uuid.UUID             `json:"user"`
	OrderItems      []orderItemResponse   `json:"orderItems"`
	ShippingAddress address.Address       `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod  `json:"paymentMethod"`
	ItemsPrice      string                `json:"itemsPrice"`
	TaxPrice        string                `json:"taxPrice"`
	ShippingPrice   string                `json:"shippingPrice"`
	TotalPrice      string                `json:"totalPrice"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	PaymentResult   *domain.PaymentResult `json:"paymentResult,omitempty"`
	Status          string                `json:"status"`
	IsDelivered     bool                  `json:"isDelivered"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	TrackingNumber  string                `json:"trackingNumber,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(pricing.Places)
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, li := range o.Items {
		items[i] = orderItemResponse{
			Product:  li.ProductID,
			Name:     li.Name,
			Image:    li.Image,
			Price:    money(li.Price),
			Quantity: li.Quantity,
		}
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		User:            o.UserID,
		OrderItems:      items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		ItemsPrice:      money(o.ItemsPrice),
		TaxPrice:        money(o.TaxPrice),
		ShippingPrice:   money(o.ShippingPrice),
		TotalPrice:      money(o.TotalPrice),
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		PaymentResult:   o.PaymentResult,
		Status:          string(o.Status),
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}

type orderPageResponse struct {
	Orders []orderResponse `json:"orders"`
	Page   int             `json:"page"`
	Pages  int             `json:"pages"`
	Total  int             `json:"total"`
}

func toOrderPageResponse(p *service.OrderPage) orderPageResponse {
	return orderPageResponse{
		Orders: toOrderResponses(p.Orders),
		Page:   p.Page,
		Pages:  p.Pages,
		Total:  p.Total,
	}
}

type paymentIntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type paymentConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
	Currency       string `json:"currency"`
	Enabled        bool   `json:"enabled"`
}
