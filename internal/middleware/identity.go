package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/emporium/internal/domain"
)

// Headers set by the upstream gateway after it has authenticated the caller.
// The service trusts them and must only be reachable through the gateway.
const (
	UserIDHeader    = "X-User-ID"
	UserRoleHeader  = "X-User-Role"
	UserEmailHeader = "X-User-Email"
)

// Identity places the gateway-authenticated caller in the request context.
// Requests without X-User-ID continue anonymously; a malformed id is
// rejected.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, r, domain.Invalid("identity", "Invalid user id header"))
			return
		}

		user := &domain.User{
			ID:    id,
			Email: strings.TrimSpace(r.Header.Get(UserEmailHeader)),
			Role:  domain.ParseRole(r.Header.Get(UserRoleHeader)),
		}
		next.ServeHTTP(w, r.WithContext(domain.WithUser(r.Context(), user)))
	})
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if domain.UserFromContext(r.Context()) == nil {
			respondWithError(w, r, domain.ErrAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := domain.UserFromContext(r.Context())
		if user == nil {
			respondWithError(w, r, domain.ErrAuthRequired)
			return
		}
		if !user.IsAdmin() {
			respondWithError(w, r, domain.ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
