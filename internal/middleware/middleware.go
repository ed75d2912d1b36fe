// Package middleware provides the HTTP middleware for the order API:
// request ids, trusted gateway identity, request-scoped logging, prometheus
// request metrics, body and time limits, and rate limiting.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/emporium/internal/domain"
)

type contextKey string

// statusByCode covers the codes middleware can produce. The handler package
// owns the full mapping but imports this package, so it cannot be shared.
var statusByCode = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.EFORBIDDEN:    http.StatusForbidden,
	domain.ETOOLARGE:     http.StatusRequestEntityTooLarge,
	domain.ERATELIMIT:    http.StatusTooManyRequests,
}

// respondWithError writes the API error envelope for a request rejected
// before it reaches a handler.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	logger := GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request rejected", "error", err, "code", code, "status", status)
	} else {
		logger.Info("request rejected", "error", err, "code", code, "status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": domain.ErrorMessage(err)},
	})
}
