package address

import (
	"context"
	"strings"
)

// Validator defines the interface for shipping address validation.
// Implementations can call out to external verification APIs; the order
// pipeline only needs the required-field checks of BasicValidator.
type Validator interface {
	// Validate checks that an address is complete enough to ship to.
	// Even if IsValid is false, NormalizedAddress may contain corrections.
	Validate(ctx context.Context, addr Address) (*ValidationResult, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, addr Address) (*ValidationResult, error)

func (f ValidatorFunc) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	return f(ctx, addr)
}

// Address is the destination recorded on an order.
type Address struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Street   string `json:"street" validate:"required,max=300"`
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state" validate:"required,max=100"`
	ZipCode  string `json:"zipCode" validate:"required,max=20"`
	Country  string `json:"country" validate:"required,max=100"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

// Normalize trims surrounding whitespace from every field.
func (a Address) Normalize() Address {
	return Address{
		FullName: strings.TrimSpace(a.FullName),
		Street:   strings.TrimSpace(a.Street),
		City:     strings.TrimSpace(a.City),
		State:    strings.TrimSpace(a.State),
		ZipCode:  strings.TrimSpace(a.ZipCode),
		Country:  strings.TrimSpace(a.Country),
		Phone:    strings.TrimSpace(a.Phone),
	}
}

// ValidationResult contains the outcome of address validation.
type ValidationResult struct {
	IsValid           bool
	NormalizedAddress *Address
	Errors            []ValidationError
}

// ValidationError represents a specific validation error.
type ValidationError struct {
	Field   string
	Message string
}
