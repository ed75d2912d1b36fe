// Package jobs defines the background work the order pipeline defers: cart
// clearing retries and customer notification emails.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/google/uuid"
)

// Job type constants
const (
	TypeCartClear         = "cart:clear"
	TypeOrderPaidEmail    = "email:order_paid"
	TypeOrderShippedEmail = "email:order_shipped"
)

// DefaultMaxAttempts bounds retries for every job type.
const DefaultMaxAttempts = 5

// ErrNoJob is returned by Queue.ClaimNext when nothing is runnable.
var ErrNoJob = errors.New("jobs: no runnable job")

// Job is a claimed unit of work.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     json.RawMessage
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LastError   string
}

// Exhausted reports whether the job has used all of its attempts.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// Queue stores jobs durably.
type Queue interface {
	Enqueue(ctx context.Context, jobType string, payload []byte, runAt time.Time, maxAttempts int) (uuid.UUID, error)

	// ClaimNext marks the oldest runnable job as processing, increments its
	// attempt count and returns it. Returns ErrNoJob when none is due.
	ClaimNext(ctx context.Context, now time.Time) (*Job, error)

	Complete(ctx context.Context, id uuid.UUID) error

	// Fail records reason. The job returns to pending at retryAt unless its
	// attempts are exhausted or retryAt is zero, in which case it is marked
	// failed.
	Fail(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time) error
}

// Job payloads (JSON-serializable)

// CartClearPayload identifies the cart to empty.
type CartClearPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// OrderEmailPayload identifies the order an email is about. The processor
// reloads the order so the email reflects its current state.
type OrderEmailPayload struct {
	OrderID uuid.UUID `json:"order_id"`
}

// EnqueueCartClear schedules a retry of a failed cart clear.
func EnqueueCartClear(ctx context.Context, q Queue, userID uuid.UUID) error {
	return enqueue(ctx, q, TypeCartClear, CartClearPayload{UserID: userID})
}

// EnqueueOrderPaidEmail schedules the payment received email.
func EnqueueOrderPaidEmail(ctx context.Context, q Queue, orderID uuid.UUID) error {
	return enqueue(ctx, q, TypeOrderPaidEmail, OrderEmailPayload{OrderID: orderID})
}

// EnqueueOrderShippedEmail schedules the shipping notice.
func EnqueueOrderShippedEmail(ctx context.Context, q Queue, orderID uuid.UUID) error {
	return enqueue(ctx, q, TypeOrderShippedEmail, OrderEmailPayload{OrderID: orderID})
}

func enqueue(ctx context.Context, q Queue, jobType string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if _, err := q.Enqueue(ctx, jobType, payloadJSON, time.Now(), DefaultMaxAttempts); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", jobType, err)
	}
	return nil
}

// Permanent reports whether a job error will recur on every retry: bad
// input, or a referenced record that no longer exists.
func Permanent(err error) bool {
	switch domain.ErrorCode(err) {
	case domain.EINVALID, domain.ENOTFOUND:
		return true
	}
	return false
}

// Backoff is the delay before retrying a job that has failed attempts times.
// It doubles from 5s and is capped at 10 minutes.
func Backoff(attempts int) time.Duration {
	const (
		base     = 5 * time.Second
		maxDelay = 10 * time.Minute
	)
	if attempts < 1 {
		return base
	}
	if attempts > 8 {
		return maxDelay
	}
	if d := base << (attempts - 1); d < maxDelay {
		return d
	}
	return maxDelay
}
