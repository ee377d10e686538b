// internal/auth/identity.go
//
// Authenticated staff identity and context plumbing.
//
// Usage
// -----
//     // Session middleware attaches the identity after a session hit.
//     ctx = auth.WithIdentity(ctx, ident)
//
//     // Downstream code retrieves it.
//     ident, ok := auth.IdentityFrom(ctx)
//
// Notes
// -----
// • The identity is loaded from the tenant's own session collection; it
//   never travels in the cookie.
// • Oxford commas, two spaces after periods.

package auth

import "context"

// Role is a staff member's panel role.
type Role string

const (
	RoleSuperAdmin Role = "Super Admin"
	RoleAdmin      Role = "Admin"
	RoleModerator  Role = "Moderator"
	RoleHelper     Role = "Helper"
)

// roleRank orders roles for at-least comparisons.  Unknown roles rank
// below Helper.
var roleRank = map[Role]int{
	RoleHelper:     1,
	RoleModerator:  2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { _, ok := roleRank[r]; return ok }

// AtLeast reports whether r carries at least min's privileges.
func (r Role) AtLeast(min Role) bool { return roleRank[r] >= roleRank[min] }

// Identity is the authenticated staff member for one request.
type Identity struct {
	ID       string
	Email    string
	Username string
	Role     Role
}

// identityKey is unexported to avoid context-key collisions.
type identityKey struct{}

// WithIdentity returns a new context carrying ident.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// IdentityFrom extracts the identity from ctx.  ok is false when no
// session authenticated this request.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(Identity)
	return ident, ok
}
