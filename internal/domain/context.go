// Package domain provides the core order types, the error taxonomy, and
// context helpers for Emporium.
//
// Identity is issued by an upstream gateway. The HTTP layer places the caller
// in context and services read it back through these helpers.
package domain

import "context"

type (
	userKey      struct{}
	requestIDKey struct{}
)

// WithUser attaches the authenticated caller to ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the caller, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
