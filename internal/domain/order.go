package domain

import (
	"fmt"
	"time"

	"github.com/dukerupert/emporium/internal/address"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order-related domain errors.
var (
	ErrOrderNotFound        = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrEmptyCart            = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidStatus        = &Error{Code: EINVALID, Message: "Status must be one of processing, shipped, delivered, cancelled"}
	ErrInvalidPaymentMethod = &Error{Code: EINVALID, Message: "Payment method must be one of stripe, paypal, cod"}
	ErrAlreadyPaid          = &Error{Code: ECONFLICT, Message: "Order is already paid"}
	ErrNotOrderOwner        = &Error{Code: EFORBIDDEN, Message: "Not authorized to access this order"}
	ErrAdminRequired        = &Error{Code: EFORBIDDEN, Message: "Admin access required"}
	ErrAuthRequired         = &Error{Code: EUNAUTHORIZED, Message: "Authentication required"}
	ErrInvalidSignature     = &Error{Code: EINTEGRITY, Message: "Invalid webhook signature"}
)

// FulfillmentStatus is the shipping progress of an order. It moves
// independently of payment.
type FulfillmentStatus string

const (
	StatusPending    FulfillmentStatus = "pending"
	StatusProcessing FulfillmentStatus = "processing"
	StatusShipped    FulfillmentStatus = "shipped"
	StatusDelivered  FulfillmentStatus = "delivered"
	StatusCancelled  FulfillmentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s FulfillmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// AdminSettable reports whether an admin may move an order into s.
// Pending is only ever the initial state.
func (s FulfillmentStatus) AdminSettable() bool {
	return s.Valid() && s != StatusPending
}

// PaymentMethod is the payment channel chosen at checkout.
type PaymentMethod string

const (
	PaymentStripe PaymentMethod = "stripe"
	PaymentPayPal PaymentMethod = "paypal"
	PaymentCOD    PaymentMethod = "cod"
)

// ParsePaymentMethod validates a requested method. Empty means stripe.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case "":
		return PaymentStripe, nil
	case PaymentStripe, PaymentPayPal, PaymentCOD:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

// PaymentSource identifies which edge delivered a confirmation.
type PaymentSource string

const (
	PaymentSourceDirect  PaymentSource = "direct"
	PaymentSourceWebhook PaymentSource = "webhook"
)

// PaymentConfirmation is evidence that the provider captured payment.
type PaymentConfirmation struct {
	TransactionID string
	Status        string
	UpdateTime    string
	EmailAddress  string
	Source        PaymentSource
}

// PaymentResult is the payment metadata recorded on a paid order.
type PaymentResult struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	UpdateTime   string        `json:"updateTime"`
	EmailAddress string        `json:"emailAddress"`
	Source       PaymentSource `json:"source"`
}

// OrderLineItem is a product snapshot taken at checkout. Later catalog
// edits never reach it.
type OrderLineItem struct {
	ProductID uuid.UUID
	Name      string
	Image     string
	Price     decimal.Decimal
	Quantity  int
}

// LineTotal is price times quantity.
func (li OrderLineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is the persisted record of a purchase.
//
// Items, ShippingAddress, PaymentMethod and the four prices are fixed at
// creation. Only the payment axis, the fulfillment axis, TrackingNumber and
// the timestamps change afterwards, and only through ApplyPayment and
// ApplyFulfillment.
type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          uuid.UUID
	CustomerEmail   string
	Items           []OrderLineItem
	ShippingAddress address.Address
	PaymentMethod   PaymentMethod
	Notes           string

	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal

	IsPaid        bool
	PaidAt        *time.Time
	PaymentResult *PaymentResult

	Status         FulfillmentStatus
	IsDelivered    bool
	DeliveredAt    *time.Time
	TrackingNumber string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyPayment records a payment confirmation. It is the only way an order
// becomes paid. A second call on a paid order changes nothing and returns
// false.
func (o *Order) ApplyPayment(c PaymentConfirmation, now time.Time) bool {
	if o.IsPaid {
		return false
	}
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentResult = &PaymentResult{
		ID:           c.TransactionID,
		Status:       c.Status,
		UpdateTime:   c.UpdateTime,
		EmailAddress: c.EmailAddress,
		Source:       c.Source,
	}
	if o.Status == StatusPending {
		o.Status = StatusProcessing
	}
	o.UpdatedAt = now
	return true
}

// ApplyFulfillment moves the fulfillment axis. An empty status keeps the
// current one so tracking can be set alone. Payment fields are untouched.
func (o *Order) ApplyFulfillment(status FulfillmentStatus, tracking *string, now time.Time) error {
	if status != "" {
		if !status.AdminSettable() {
			return ErrInvalidStatus
		}
		if status == StatusDelivered && o.Status != StatusDelivered {
			o.IsDelivered = true
			o.DeliveredAt = &now
		}
		if status != StatusDelivered {
			o.IsDelivered = false
		}
		o.Status = status
	}
	if tracking != nil {
		o.TrackingNumber = *tracking
	}
	o.UpdatedAt = now
	return nil
}

// Validate checks the structural invariants of an order.
func (o *Order) Validate() error {
	const op = "order.validate"
	if len(o.Items) == 0 {
		return ErrEmptyCart
	}
	for _, li := range o.Items {
		if li.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	if !o.TotalPrice.Equal(o.ItemsPrice.Add(o.TaxPrice).Add(o.ShippingPrice)) {
		return Errorf(EINTERNAL, op, "total %s does not equal sum of parts", o.TotalPrice)
	}
	if !o.Status.Valid() {
		return Errorf(EINTERNAL, op, "unknown status %q", o.Status)
	}
	if o.IsPaid && (o.PaidAt == nil || o.PaymentResult == nil) {
		return Errorf(EINTERNAL, op, "paid order missing payment metadata")
	}
	if o.Status == StatusDelivered && o.DeliveredAt == nil {
		return Errorf(EINTERNAL, op, "delivered order missing delivered timestamp")
	}
	return nil
}

// GenerateOrderNumber builds a human readable order reference such as
// ORD-20260314-4F2A9C1B.
func GenerateOrderNumber(id uuid.UUID, now time.Time) string {
	return fmt.Sprintf("ORD-%s-%X", now.UTC().Format("20060102"), id[:4])
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderLineItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		r := *o.PaymentResult
		c.PaymentResult = &r
	}
	return &c
}
