// internal/session/static.go
//
// Fixture identity provider for handler tests.
//
// Context
// -------
// Handler and router tests need an authenticated request without a live
// session collection behind it.  StaticIdentity is the only sanctioned
// way to do that: an explicit middleware a test wires into its own
// router.  Production wiring (cmd/web) never constructs it, and nothing
// in this package consults environment variables to pick it: an auth
// bypass must be visible in the composition, not latent in the process
// environment.

package session

import (
	"net/http"

	"github.com/modl-gg/panel/internal/auth"
)

// StaticIdentity returns middleware that stamps every request with a
// fixed identity.  Test fixtures only.
func StaticIdentity(ident auth.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), ident)))
		})
	}
}
