package address

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BasicValidator performs required-field and length checks without external
// API calls.
type BasicValidator struct {
	validate *validator.Validate
}

// NewBasicValidator creates a new basic address validator.
func NewBasicValidator() *BasicValidator {
	v := validator.New()
	// Report json field names so errors line up with request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BasicValidator{validate: v}
}

// Validate trims the address and checks it against the struct tags.
func (v *BasicValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	normalized := addr.Normalize()
	result := &ValidationResult{IsValid: true, NormalizedAddress: &normalized}

	err := v.validate.StructCtx(ctx, normalized)
	if err == nil {
		return result, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, fmt.Errorf("validate address: %w", err)
	}

	result.IsValid = false
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return result, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
