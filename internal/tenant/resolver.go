// internal/tenant/resolver.go
//
// Request resolver: Host header → tenant context.
//
// Context
// -------
// Every tenant-aware request passes through Middleware before any route
// handler runs.  The resolver extracts a tenant key from the Host header
// (leftmost label under the platform suffix, otherwise the full host as a
// custom-domain candidate), looks the tenant up in the Global Registry
// behind a short-TTL cache, gates on provisioning status, asks the pool
// for a connection, and stores a Resolution in the request context.
// Resolution failures short-circuit with the mandated status codes; route
// handlers never re-validate tenant existence.
//
// Platform paths (webhook receivers, health, metrics, marketing, static
// assets) are matched against a prefix allowlist *before* enforcement, so
// a tenant resolution failure can never block them.
//
// Notes
// -----
// • The resolver only ever reads tenant records; registry writes belong
//   to the billing, provisioning, and domain workflows.
// • Lookup cache entries carry both hits and not-found results; the TTL
//   bounds how long a plan or provisioning change can stay invisible.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/modl-gg/panel/internal/cache"
	"github.com/modl-gg/panel/internal/metrics"
	"github.com/modl-gg/panel/internal/registry"
)

// Lookup is the registry surface the resolver needs.  *registry.Registry
// satisfies it; resolver tests inject an in-memory fake.
type Lookup interface {
	BySubdomain(ctx context.Context, slug string) (*registry.Record, error)
	ByCustomDomain(ctx context.Context, host string) (*registry.Record, error)
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// DomainSuffix is the shared platform hostname space, e.g. "modl.gg".
	DomainSuffix string
	// LookupTTL bounds registry lookup staleness.  Default 30s.
	LookupTTL time.Duration
	// CacheSize caps the lookup cache.  Default 1024.
	CacheSize int
	// BypassPrefixes lists path prefixes exempt from tenant enforcement.
	BypassPrefixes []string
	// LookupTimeout bounds one registry round trip.  Default 5s.
	LookupTimeout time.Duration
}

// Resolver maps requests to tenants.
type Resolver struct {
	lookup Lookup
	pool   *Pool
	opts   ResolverOptions
	cache  *cache.TTL
}

// cached lookup result: either a record snapshot or a remembered miss.
type lookupResult struct {
	rec *registry.Record // nil means not found
}

// NewResolver wires a resolver to its registry lookup and pool.
func NewResolver(lookup Lookup, pool *Pool, opts ResolverOptions) *Resolver {
	if opts.LookupTTL == 0 {
		opts.LookupTTL = 30 * time.Second
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 1024
	}
	if opts.LookupTimeout == 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	return &Resolver{
		lookup: lookup,
		pool:   pool,
		opts:   opts,
		cache:  cache.New(opts.CacheSize, opts.LookupTTL),
	}
}

//
// Middleware
//

// Middleware enforces tenant resolution for every non-platform path.
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rv.bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		res := rv.Resolve(r.Context(), HostFromRequest(r))
		metrics.ResolveTotal.WithLabelValues(res.Outcome.String()).Inc()

		switch res.Outcome {
		case OutcomeResolved:
			next.ServeHTTP(w, r.WithContext(WithResolution(r.Context(), res)))

		case OutcomeNotFound:
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "unknown_server",
				"message": "No server is registered for this address.",
			})

		case OutcomeProvisioning:
			// Deliberately non-5xx so polling clients can tell "try again
			// shortly" from a hard failure.
			w.Header().Set("Retry-After", "10")
			writeJSON(w, http.StatusOK, map[string]string{
				"status":             "provisioning",
				"provisioningStatus": string(res.Record.Provisioning),
				"message":            "This server is still being set up.",
			})

		case OutcomeFailed:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":   "provisioning_failed",
				"message": "Server setup failed.  Please contact support.",
			})

		default: // OutcomeUnavailable
			zap.L().Error("tenant unavailable",
				zap.String("host", res.Host),
				zap.String("slug", res.Slug),
				zap.Error(res.Err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":   "server_unavailable",
				"message": "The server is temporarily unavailable.  Try again later.",
			})
		}
	})
}

// Resolve performs the full lookup → gate → acquire sequence for host.
func (rv *Resolver) Resolve(ctx context.Context, host string) *Resolution {
	res := rv.ResolveRecord(ctx, host)
	if res.Outcome != OutcomeResolved {
		return res
	}

	// The record is servable: attach a pooled connection.  A connection
	// failure must never fall back to another tenant's pool entry.
	conn, err := rv.pool.Acquire(ctx, res.Record.DatabaseName)
	if err != nil {
		return &Resolution{
			Outcome: OutcomeUnavailable,
			Host:    res.Host,
			Slug:    res.Slug,
			Record:  res.Record,
			Err:     err,
		}
	}
	res.Conn = conn
	return res
}

// ResolveRecord resolves host to a tenant record and classifies its state
// without touching the pool.  Used by Resolve, the status poll endpoint,
// and the HTTPS-redirect middleware.
func (rv *Resolver) ResolveRecord(ctx context.Context, host string) *Resolution {
	host = strings.ToLower(stripPort(host))
	slug, domain := rv.SplitHost(host)
	if slug == "" && domain == "" {
		return &Resolution{Outcome: OutcomeNotFound, Host: host}
	}

	rec, err := rv.lookupRecord(ctx, host, slug, domain)
	if err != nil {
		return &Resolution{Outcome: OutcomeUnavailable, Host: host, Slug: slug, Err: err}
	}
	if rec == nil {
		return &Resolution{Outcome: OutcomeNotFound, Host: host, Slug: slug}
	}

	res := &Resolution{Host: host, Slug: rec.Slug, Record: rec}
	switch {
	case rec.Provisioning.Servable():
		res.Outcome = OutcomeResolved
	case rec.Provisioning.InFlight():
		res.Outcome = OutcomeProvisioning
	default:
		res.Outcome = OutcomeFailed
	}
	return res
}

// lookupRecord consults the cache, then the registry.  Both hits and
// misses are cached; infrastructure errors are not.
func (rv *Resolver) lookupRecord(ctx context.Context, host, slug, domain string) (*registry.Record, error) {
	if v, ok := rv.cache.Get(host); ok {
		metrics.LookupCacheHitTotal.Inc()
		return v.(lookupResult).rec, nil
	}

	lctx, cancel := context.WithTimeout(ctx, rv.opts.LookupTimeout)
	defer cancel()

	var (
		rec *registry.Record
		err error
	)
	if slug != "" {
		rec, err = rv.lookup.BySubdomain(lctx, slug)
	} else {
		rec, err = rv.lookup.ByCustomDomain(lctx, domain)
	}
	if errors.Is(err, registry.ErrNotFound) {
		rv.cache.Add(host, lookupResult{})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rv.cache.Add(host, lookupResult{rec: rec})
	return rec, nil
}

// Known reports whether host maps to any tenant record.  Used by the
// ForceHTTPS middleware to avoid redirecting unknown hosts.
func (rv *Resolver) Known(ctx context.Context, host string) bool {
	res := rv.ResolveRecord(ctx, host)
	return res.Record != nil
}

// Invalidate drops a tenant's lookup cache entries and pooled connection.
// Call after registry writes that must propagate immediately (database
// rename, deletion, domain detach).
func (rv *Resolver) Invalidate(rec *registry.Record) {
	rv.cache.Remove(rec.Slug + "." + rv.opts.DomainSuffix)
	if rec.CustomDomain != "" {
		rv.cache.Remove(rec.CustomDomain)
	}
	rv.pool.Invalidate(rec.DatabaseName)
}

//
// Host parsing
//

// SplitHost classifies host as a platform subdomain (slug) or a custom
// domain candidate.  The platform apex itself carries no tenant.
func (rv *Resolver) SplitHost(host string) (slug, domain string) {
	suffix := strings.ToLower(rv.opts.DomainSuffix)
	if host == suffix {
		return "", ""
	}
	if strings.HasSuffix(host, "."+suffix) {
		// Leftmost label is the slug: "acme.modl.gg" → "acme".
		return strings.SplitN(host, ".", 2)[0], ""
	}
	return "", host
}

// HostFromRequest prefers the forwarded host when running behind a proxy.
func HostFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i != -1 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	return r.Host
}

// bypassed reports whether path is on the platform allowlist.
func (rv *Resolver) bypassed(path string) bool {
	for _, p := range rv.opts.BypassPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// stripPort removes any ":port" suffix from the Host header.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}

//
// Status poll endpoint
//

// StatusHandler serves GET /api/public/status: a polling client's view of
// its server's provisioning state.  Never touches the pool.
func (rv *Resolver) StatusHandler(w http.ResponseWriter, r *http.Request) {
	res := rv.ResolveRecord(r.Context(), HostFromRequest(r))
	switch res.Outcome {
	case OutcomeResolved:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	case OutcomeProvisioning:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":             "provisioning",
			"provisioningStatus": string(res.Record.Provisioning),
		})
	case OutcomeFailed:
		writeJSON(w, http.StatusOK, map[string]string{"status": "failed"})
	case OutcomeNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown"})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error"})
	}
}

// writeJSON emits a small JSON payload.  Encoding failures are ignored;
// the header has already been written.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
