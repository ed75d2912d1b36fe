package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the caller's privilege level as asserted by the gateway.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a gateway role header to a Role. Anything other than admin
// is a customer.
func ParseRole(s string) Role {
	if Role(strings.ToLower(strings.TrimSpace(s))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// User is the authenticated caller.
type User struct {
	ID    uuid.UUID
	Email string
	Role  Role
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Owns reports whether the caller placed o.
func (u *User) Owns(o *Order) bool {
	return u != nil && o != nil && u.ID == o.UserID
}

// CanView reports whether the caller may read o: its owner or any admin.
func (u *User) CanView(o *Order) bool {
	return u.IsAdmin() || u.Owns(o)
}
