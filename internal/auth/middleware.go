// internal/auth/middleware.go
//
// Role-gate middleware for panel routes.

package auth

import (
	"net/http"
)

// RequireRole ensures the current identity holds ANY of the supplied
// roles.  Unauthenticated requests get 401, authenticated-but-unpermitted
// get 403.
func RequireRole(names ...Role) func(http.Handler) http.Handler {
	if len(names) == 0 {
		panic("auth.RequireRole: at least one role must be supplied")
	}
	allow := make(map[Role]struct{}, len(names))
	for _, n := range names {
		allow[n] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFrom(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if _, ok := allow[ident.Role]; !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAtLeast admits any identity ranking at or above min, so a Super
// Admin passes every gate a Helper passes.
func RequireAtLeast(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFrom(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !ident.Role.AtLeast(min) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
