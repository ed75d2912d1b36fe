package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the order pipeline.
// A nil *BusinessMetrics is valid and records nothing.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutStarted    prometheus.Counter
	CheckoutCompleted  *prometheus.CounterVec
	CheckoutFailed     *prometheus.CounterVec
	StockConflicts     prometheus.Counter
	ReservationsUndone prometheus.Counter
	CartClearFailed    prometheus.Counter

	// Orders
	OrderValue     *prometheus.HistogramVec
	OrderItemCount prometheus.Histogram
	Fulfillment    *prometheus.CounterVec

	// Payments
	PaymentIntents    prometheus.Counter
	PaymentsConfirmed *prometheus.CounterVec
	PaymentDuplicates *prometheus.CounterVec
	PaymentFailed     *prometheus.CounterVec
	RevenueCollected  prometheus.Counter
	StripeAPILatency  *prometheus.HistogramVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

// NewBusinessMetrics registers the business metrics with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "emporium"
	}
	f := promauto.With(reg)

	const subsystem = "business"
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
	}

	return &BusinessMetrics{
		CheckoutStarted:    counter("checkout_started_total", "Order placement attempts"),
		CheckoutCompleted:  counterVec("checkout_completed_total", "Orders placed", "payment_method"),
		CheckoutFailed:     counterVec("checkout_failed_total", "Order placements that failed", "reason"),
		StockConflicts:     counter("stock_conflicts_total", "Reservations refused for insufficient stock"),
		ReservationsUndone: counter("reservations_released_total", "Reservations released by checkout rollback"),
		CartClearFailed:    counter("cart_clear_failed_total", "Carts not cleared inline after order placement"),

		OrderValue: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value",
				Help:      "Order total in currency units",
				Buckets:   []float64{10, 25, 50, 100, 150, 250, 500, 1000},
			},
			[]string{"payment_method"},
		),
		OrderItemCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_item_count",
			Help:      "Distinct products per order",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		Fulfillment: counterVec("fulfillment_updates_total", "Admin fulfillment transitions", "status"),

		PaymentIntents:    counter("payment_intents_total", "Payment intents created"),
		PaymentsConfirmed: counterVec("payments_confirmed_total", "Orders transitioned to paid", "source"),
		PaymentDuplicates: counterVec("payment_duplicates_total", "Confirmations for orders already paid", "source"),
		PaymentFailed:     counterVec("payment_failed_total", "Payment failures reported by the provider", "reason"),
		RevenueCollected:  counter("revenue_collected_total", "Paid order totals in currency units"),
		StripeAPILatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stripe_api_duration_seconds",
				Help:      "Stripe API call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),

		WebhookReceived:  counterVec("webhook_received_total", "Verified webhook events received", "event_type"),
		WebhookProcessed: counterVec("webhook_processed_total", "Webhook events handled", "event_type"),
		WebhookFailed:    counterVec("webhook_failed_total", "Webhook events rejected or failed", "reason"),
		WebhookLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook handling duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),

		JobsEnqueued:  counterVec("jobs_enqueued_total", "Background jobs enqueued", "job_type"),
		JobsProcessed: counterVec("jobs_processed_total", "Background jobs finished", "job_type", "result"),
		JobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Background job run time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job_type"},
		),
	}
}

func (m *BusinessMetrics) CheckoutStart() {
	if m == nil {
		return
	}
	m.CheckoutStarted.Inc()
}

func (m *BusinessMetrics) CheckoutComplete(paymentMethod string, total float64, items int) {
	if m == nil {
		return
	}
	m.CheckoutCompleted.WithLabelValues(paymentMethod).Inc()
	m.OrderValue.WithLabelValues(paymentMethod).Observe(total)
	m.OrderItemCount.Observe(float64(items))
}

func (m *BusinessMetrics) CheckoutFail(reason string) {
	if m == nil {
		return
	}
	m.CheckoutFailed.WithLabelValues(reason).Inc()
}

func (m *BusinessMetrics) StockConflict() {
	if m == nil {
		return
	}
	m.StockConflicts.Inc()
}

func (m *BusinessMetrics) ReservationsReleased(n int) {
	if m == nil {
		return
	}
	m.ReservationsUndone.Add(float64(n))
}

func (m *BusinessMetrics) CartClearFailure() {
	if m == nil {
		return
	}
	m.CartClearFailed.Inc()
}

func (m *BusinessMetrics) FulfillmentUpdate(status string) {
	if m == nil {
		return
	}
	m.Fulfillment.WithLabelValues(status).Inc()
}

func (m *BusinessMetrics) PaymentIntentCreated(d time.Duration) {
	if m == nil {
		return
	}
	m.PaymentIntents.Inc()
	m.StripeAPILatency.WithLabelValues("create_payment_intent").Observe(d.Seconds())
}

// PaymentConfirmed records a confirmation. Applied is false for duplicates.
func (m *BusinessMetrics) PaymentConfirmed(source string, applied bool, total float64) {
	if m == nil {
		return
	}
	if !applied {
		m.PaymentDuplicates.WithLabelValues(source).Inc()
		return
	}
	m.PaymentsConfirmed.WithLabelValues(source).Inc()
	m.RevenueCollected.Add(total)
}

func (m *BusinessMetrics) PaymentFailure(reason string) {
	if m == nil {
		return
	}
	m.PaymentFailed.WithLabelValues(reason).Inc()
}

func (m *BusinessMetrics) WebhookReceive(eventType string) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(eventType).Inc()
}

func (m *BusinessMetrics) WebhookDone(eventType string, d time.Duration) {
	if m == nil {
		return
	}
	m.WebhookProcessed.WithLabelValues(eventType).Inc()
	m.WebhookLatency.WithLabelValues(eventType).Observe(d.Seconds())
}

func (m *BusinessMetrics) WebhookFailure(reason string) {
	if m == nil {
		return
	}
	m.WebhookFailed.WithLabelValues(reason).Inc()
}

func (m *BusinessMetrics) JobEnqueued(jobType string) {
	if m == nil {
		return
	}
	m.JobsEnqueued.WithLabelValues(jobType).Inc()
}

func (m *BusinessMetrics) JobFinished(jobType string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.JobsProcessed.WithLabelValues(jobType, result).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}
