package service

import (
	"github.com/dukerupert/emporium/internal/domain"
)

// Payment errors
var (
	ErrCardPaymentsDisabled  = domain.Errorf(domain.ENOTIMPL, "", "Card payments are not configured")
	ErrNotCardOrder          = domain.Errorf(domain.EINVALID, "", "Order was not placed with card payment")
	ErrMissingTransactionID  = domain.Errorf(domain.EINVALID, "", "Payment transaction id is required")
	ErrPaymentProviderFailed = domain.Errorf(domain.EPAYMENT, "", "Payment provider request failed")
)

// Order errors
var (
	ErrNothingToUpdate = domain.Errorf(domain.EINVALID, "", "Status or tracking number is required")
	ErrCheckoutAborted = domain.Errorf(domain.EINTERNAL, "", "Checkout was interrupted")
)
