package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes. The HTTP layer maps each one to a status; see
// handler.ErrorCodeToHTTPStatus.
const (
	EINVALID      = "invalid"          // malformed or unacceptable input
	EINTEGRITY    = "integrity"        // authenticity check failed, e.g. a webhook signature
	EUNAUTHORIZED = "unauthorized"     // no caller identity
	EFORBIDDEN    = "forbidden"        // caller may not touch the resource
	ENOTFOUND     = "not_found"        // order or product does not exist
	ECONFLICT     = "conflict"         // state prevents the change, e.g. insufficient stock
	EPAYMENT      = "payment_required" // provider declined or rejected a charge
	ETOOLARGE     = "too_large"        // request body over the limit
	ERATELIMIT    = "rate_limit"       // caller exceeded the checkout budget
	ENOTIMPL      = "not_implemented"  // feature not configured, e.g. card payments
	ETIMEOUT      = "timeout"          // request deadline passed
	EINTERNAL     = "internal"         // anything else; details never reach the caller
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is an application error. Message is safe to return to callers.
// Op and Err exist for logs.
type Error struct {
	Code    string
	Message string
	Op      string // e.g. "checkout.place"
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ErrorCode returns the code of the outermost *Error in err's chain, "" for
// nil and EINTERNAL for anything else.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the caller-facing message. Internal and unknown
// errors collapse to a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

// ErrorOp returns the operation recorded on err, for logging.
func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Errorf creates an error with a formatted message.
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code, op and message to err. Returns nil for nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

func Integrity(op, message string) error {
	return &Error{Code: EINTEGRITY, Op: op, Message: message}
}

// Internal wraps a failure callers should never see the details of.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// ValidationError collects per-field failures. Keys are JSON paths such as
// "orderItems[0].qty" or "shippingAddress.city".
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	prefix := ""
	if e.Op != "" {
		prefix = e.Op + ": "
	}
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return prefix + field + ": " + msg
		}
	}
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return prefix + "invalid fields: " + strings.Join(names, ", ")
}

// NewValidationError creates a validation error for one field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError records a field failure on err when it already is a
// ValidationError, otherwise it starts a new one.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if err != nil && errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return &ValidationError{Fields: map[string]string{field: message}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields returns the field failures, or nil.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
