package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	dbErr := errors.New("connection refused")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", &Error{Code: EINVALID, Message: "Cart is empty"}, "Cart is empty"},
		{"with op", &Error{Code: EINVALID, Op: "checkout.place", Message: "Cart is empty"}, "checkout.place: Cart is empty"},
		{"with op and cause", &Error{Code: EINTERNAL, Op: "order.save", Message: "failed to save order", Err: dbErr}, "order.save: failed to save order: connection refused"},
		{"cause without op", &Error{Code: EINTERNAL, Message: "failed to save order", Err: dbErr}, "failed to save order: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorCodeAndMessage(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{"nil", nil, "", ""},
		{"plain error is internal", errors.New("boom"), EINTERNAL, internalMessage},
		{"sentinel", ErrOrderNotFound, ENOTFOUND, "Order not found"},
		{"wrapped sentinel", fmt.Errorf("load: %w", ErrAlreadyPaid), ECONFLICT, "Order is already paid"},
		{"internal hides message", Internal(errors.New("pgx: timeout"), "order.save", "failed to save order"), EINTERNAL, internalMessage},
		{"integrity keeps message", Integrity("payment.webhook", "invalid signature"), EINTEGRITY, "invalid signature"},
		{"outermost code wins", WrapError(ErrProductNotFound, EINTERNAL, "cart.load", "failed to load cart"), EINTERNAL, internalMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.wantCode {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.wantCode)
			}
			if got := ErrorMessage(tt.err); got != tt.wantMessage {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorOp(t *testing.T) {
	if got := ErrorOp(Errorf(EINVALID, "pricing.calculate", "bad rate %s", "x")); got != "pricing.calculate" {
		t.Errorf("ErrorOp() = %q", got)
	}
	if got := ErrorOp(errors.New("boom")); got != "" {
		t.Errorf("ErrorOp() of plain error = %q", got)
	}
	if got := ErrorOp(nil); got != "" {
		t.Errorf("ErrorOp(nil) = %q", got)
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, EINTERNAL, "op", "msg") != nil {
		t.Fatal("WrapError(nil) should be nil")
	}

	cause := errors.New("deadlock detected")
	err := WrapError(cause, EINTERNAL, "inventory.reserve", "failed to reserve stock")
	if !errors.Is(err, cause) {
		t.Error("wrapped cause is not reachable with errors.Is")
	}
	if !IsCode(err, EINTERNAL) || IsCode(err, ECONFLICT) {
		t.Errorf("IsCode mismatch for %v", err)
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single field", func(t *testing.T) {
		err := NewValidationError("checkout.place", "shippingAddress.city", "is required")
		if got, want := err.Error(), "checkout.place: shippingAddress.city: is required"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		if !IsValidationError(fmt.Errorf("decode: %w", err)) {
			t.Error("wrapped validation error not detected")
		}
	})

	t.Run("fields accumulate and render sorted", func(t *testing.T) {
		var err error
		err = AddFieldError(err, "orderItems[1].qty", "must be at least 1")
		err = AddFieldError(err, "orderItems[0].product", "is required")

		fields := GetValidationFields(err)
		if len(fields) != 2 {
			t.Fatalf("fields = %v", fields)
		}
		if got, want := err.Error(), "invalid fields: orderItems[0].product, orderItems[1].qty"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("adding to a non-validation error starts fresh", func(t *testing.T) {
		err := AddFieldError(errors.New("boom"), "paymentMethod", "is invalid")
		if fields := GetValidationFields(err); len(fields) != 1 || fields["paymentMethod"] != "is invalid" {
			t.Errorf("fields = %v", fields)
		}
	})

	t.Run("plain errors have no fields", func(t *testing.T) {
		if IsValidationError(ErrEmptyCart) || GetValidationFields(ErrEmptyCart) != nil {
			t.Error("ErrEmptyCart is not a ValidationError")
		}
	})
}

func TestSentinelCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"ErrEmptyCart", ErrEmptyCart, EINVALID},
		{"ErrInvalidQuantity", ErrInvalidQuantity, EINVALID},
		{"ErrInvalidStatus", ErrInvalidStatus, EINVALID},
		{"ErrInvalidPaymentMethod", ErrInvalidPaymentMethod, EINVALID},
		{"ErrProductNotFound", ErrProductNotFound, ENOTFOUND},
		{"ErrOrderNotFound", ErrOrderNotFound, ENOTFOUND},
		{"ErrAlreadyPaid", ErrAlreadyPaid, ECONFLICT},
		{"ErrNotOrderOwner", ErrNotOrderOwner, EFORBIDDEN},
		{"ErrAdminRequired", ErrAdminRequired, EFORBIDDEN},
		{"ErrAuthRequired", ErrAuthRequired, EUNAUTHORIZED},
		{"ErrInvalidSignature", ErrInvalidSignature, EINTEGRITY},
		{"Invalid", Invalid("checkout.place", "quantity must be at least 1"), EINVALID},
		{"Conflict", Conflict("inventory.reserve", "insufficient stock"), ECONFLICT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}
