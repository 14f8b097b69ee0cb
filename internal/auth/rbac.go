package auth

import (
	"errors"
	"strings"
)

// ErrForbidden means the identity is authenticated but lacks the required role.
var ErrForbidden = errors.New("forbidden")

type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return string(RoleAdmin)
	default:
		return string(RoleStaff)
	}
}

// RequireRole is a pure predicate with no I/O.
func RequireRole(claims *Claims, role Role) error {
	if claims == nil {
		return ErrForbidden
	}
	if NormalizeRole(claims.Role) != string(role) {
		return ErrForbidden
	}
	return nil
}

func IsAdmin(claims *Claims) bool {
	return claims != nil && NormalizeRole(claims.Role) == string(RoleAdmin)
}
