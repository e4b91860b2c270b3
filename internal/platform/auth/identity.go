package auth

import (
	"context"
	"slices"
	"strings"
)

// Roles carried in the Firebase "role" custom claim. Admins may advance orders.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller extracted from a Firebase ID token.
type Identity struct {
	UID    string
	Email  string
	Roles  []string
	Locale string
}

// HasRole reports whether the identity includes role, ignoring case.
func (i *Identity) HasRole(role string) bool {
	role = normaliseRole(role)
	if i == nil || role == "" {
		return false
	}
	return slices.ContainsFunc(i.Roles, func(r string) bool { return strings.EqualFold(r, role) })
}

// HasAnyRole reports whether the identity includes any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, i.HasRole)
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (i *Identity) IsAdmin() bool { return i.HasRole(RoleAdmin) }

type identityKey struct{}

// WithIdentity stores the identity for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext retrieves the identity stored by RequireFirebaseAuth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
