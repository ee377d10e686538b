// internal/session/middleware.go
//
// Session gate: cookie → auth.Identity in the request context.

package session

import (
	"net/http"

	"github.com/modl-gg/panel/internal/auth"
	"github.com/modl-gg/panel/internal/tenant"
)

// Middleware loads the request's session from the resolved tenant's
// database and attaches the identity.  It never rejects: anonymous
// requests, unresolved tenants, and platform paths all pass through
// untouched, and the role gates in internal/auth decide what an
// anonymous request may reach.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := tenant.FromContext(r.Context())
		if res == nil || !res.Resolved() {
			next.ServeHTTP(w, r)
			return
		}

		if ident, ok := s.Load(r.Context(), res.Conn, r); ok {
			r = r.WithContext(auth.WithIdentity(r.Context(), ident))
		}
		next.ServeHTTP(w, r)
	})
}
