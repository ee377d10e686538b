// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/modl-gg/panel/internal/tenant"
)

// ForceHTTPS wraps h.  If the request arrived over plain HTTP, the host
// is not "localhost", and the resolver knows the host as a tenant, the
// wrapper issues a 308 Permanent Redirect to the HTTPS version of the
// same URL.  Unknown hosts keep the normal flow so they still get the
// resolver's 404 instead of a redirect loop.
func ForceHTTPS(rv *tenant.Resolver, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Already HTTPS (directly or via proxy) or dev host → continue.
		if r.TLS != nil ||
			r.Header.Get("X-Forwarded-Proto") == "https" ||
			stripPort(r.Host) == "localhost" {
			h.ServeHTTP(w, r)
			return
		}

		if rv.Known(r.Context(), tenant.HostFromRequest(r)) {
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
