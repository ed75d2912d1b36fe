package email

import "time"

// Template is the data for one kind of order email. Name selects the
// "<name>.html" and "<name>.txt" templates.
type Template interface {
	Name() string
	Subject() string
	Recipient() string
	Reference() string
}

// OrderItem is one line on an order email.
type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

// OrderPaidEmail confirms that payment for an order was received.
type OrderPaidEmail struct {
	To            string
	OrderNumber   string
	CustomerName  string
	PaidAt        time.Time
	Items         []OrderItem
	ItemsPrice    string
	TaxPrice      string
	ShippingPrice string
	TotalPrice    string
}

func (e OrderPaidEmail) Name() string      { return "order_paid" }
func (e OrderPaidEmail) Subject() string   { return "Payment received - " + e.OrderNumber }
func (e OrderPaidEmail) Recipient() string { return e.To }
func (e OrderPaidEmail) Reference() string { return e.OrderNumber }

// OrderShippedEmail tells the customer their order is on its way.
type OrderShippedEmail struct {
	To             string
	OrderNumber    string
	CustomerName   string
	TrackingNumber string
}

func (e OrderShippedEmail) Name() string      { return "order_shipped" }
func (e OrderShippedEmail) Subject() string   { return "Your order has shipped - " + e.OrderNumber }
func (e OrderShippedEmail) Recipient() string { return e.To }
func (e OrderShippedEmail) Reference() string { return e.OrderNumber }
