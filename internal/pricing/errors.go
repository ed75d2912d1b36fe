package pricing

// These constants mirror domain error codes to avoid circular imports.
const (
	codeInvalid = "invalid"
)

// PricingError represents a pricing configuration error with a code and message.
type PricingError struct {
	Code    string
	Message string
}

func (e *PricingError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *PricingError) ErrorCode() string {
	return e.Code
}

var (
	ErrInvalidTaxRate  = &PricingError{Code: codeInvalid, Message: "Tax rate must be between 0 and 1"}
	ErrInvalidShipping = &PricingError{Code: codeInvalid, Message: "Shipping amounts must not be negative"}
)
