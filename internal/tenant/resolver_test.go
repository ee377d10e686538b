// internal/tenant/resolver_test.go
//
// End-to-end resolution tests: Host header in, status code and tenant
// context out.
//
// Context
// -------
// These tests drive the real Middleware over httptest with an in-memory
// registry fake and a counting pool factory, covering the four request
// fates (resolved, unknown, provisioning, failed), custom-domain
// equivalence, platform-path bypass, and cross-tenant isolation.
//
// Workflow / Structure
// --------------------
// fakeLookup ── map-backed Lookup with an invocation counter, so cache
// behaviour is observable.  newTestResolver wires fakeLookup + fake pool
// factory into a Resolver with the production defaults shrunk for tests.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/modl-gg/panel/internal/provision"
	"github.com/modl-gg/panel/internal/registry"
)

// fakeLookup satisfies Lookup from two in-memory maps.
type fakeLookup struct {
	bySlug   map[string]*registry.Record
	byDomain map[string]*registry.Record
	calls    atomic.Int64
}

func (f *fakeLookup) BySubdomain(_ context.Context, slug string) (*registry.Record, error) {
	f.calls.Add(1)
	if rec, ok := f.bySlug[slug]; ok {
		return rec, nil
	}
	return nil, registry.ErrNotFound
}

func (f *fakeLookup) ByCustomDomain(_ context.Context, host string) (*registry.Record, error) {
	f.calls.Add(1)
	if rec, ok := f.byDomain[host]; ok {
		return rec, nil
	}
	return nil, registry.ErrNotFound
}

func record(slug string, st provision.Status) *registry.Record {
	return &registry.Record{
		Slug:         slug,
		Provisioning: st,
		DatabaseName: registry.DatabaseNameForSlug(slug),
	}
}

func newTestResolver(t *testing.T, lk *fakeLookup) (*Resolver, *atomic.Int64) {
	t.Helper()
	var factoryCalls atomic.Int64
	pool := NewPool(func(_ context.Context, dbName string) (Handle, error) {
		factoryCalls.Add(1)
		return &fakeHandle{db: dbName}, nil
	}, Options{})
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	rv := NewResolver(lk, pool, ResolverOptions{
		DomainSuffix:   "modl.gg",
		BypassPrefixes: []string{"/healthz", "/api/public/"},
	})
	return rv, &factoryCalls
}

// capture records the Resolution the middleware handed downstream.
func capture(res **Resolution) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*res = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func get(h http.Handler, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	return w
}

func TestMiddleware_ResolvesSubdomain(t *testing.T) {
	lk := &fakeLookup{bySlug: map[string]*registry.Record{
		"acme": record("acme", provision.StatusCompleted),
	}}
	rv, factoryCalls := newTestResolver(t, lk)

	var res *Resolution
	w := get(rv.Middleware(capture(&res)), "http://acme.modl.gg/api/panel/me")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if res == nil || !res.Resolved() {
		t.Fatal("handler ran without a resolved tenant")
	}
	if res.Slug != "acme" || res.Record.DatabaseName != "modl_acme" {
		t.Fatalf("resolved %q → %q", res.Slug, res.Record.DatabaseName)
	}
	if res.Conn == nil || res.Conn.Handle() == nil {
		t.Fatal("resolution carries no live connection")
	}
	if factoryCalls.Load() != 1 {
		t.Fatalf("factory called %d times, want 1", factoryCalls.Load())
	}
}

func TestMiddleware_UnknownHostIs404BeforePool(t *testing.T) {
	lk := &fakeLookup{}
	rv, factoryCalls := newTestResolver(t, lk)

	var res *Resolution
	w := get(rv.Middleware(capture(&res)), "http://ghost.modl.gg/")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if res != nil {
		t.Fatal("handler ran for an unknown host")
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "unknown_server" {
		t.Fatalf("error = %q, want unknown_server", body["error"])
	}
	// The pool must never be touched for a host with no record.
	if factoryCalls.Load() != 0 {
		t.Fatalf("factory called %d times for unknown host", factoryCalls.Load())
	}
}

func TestMiddleware_CustomDomainSharesConnection(t *testing.T) {
	acme := record("acme", provision.StatusCompleted)
	acme.CustomDomain = "support.acme.example"
	lk := &fakeLookup{
		bySlug:   map[string]*registry.Record{"acme": acme},
		byDomain: map[string]*registry.Record{"support.acme.example": acme},
	}
	rv, factoryCalls := newTestResolver(t, lk)

	var sub, custom *Resolution
	if w := get(rv.Middleware(capture(&sub)), "http://acme.modl.gg/"); w.Code != http.StatusOK {
		t.Fatalf("subdomain status = %d", w.Code)
	}
	if w := get(rv.Middleware(capture(&custom)), "http://support.acme.example/"); w.Code != http.StatusOK {
		t.Fatalf("custom-domain status = %d", w.Code)
	}

	if sub.Record.Slug != custom.Record.Slug {
		t.Fatal("the two hosts resolved different tenants")
	}
	if sub.Conn != custom.Conn {
		t.Fatal("same tenant, different pooled connections")
	}
	if factoryCalls.Load() != 1 {
		t.Fatalf("factory called %d times, want 1", factoryCalls.Load())
	}
}

func TestMiddleware_ProvisioningStatesGate(t *testing.T) {
	lk := &fakeLookup{bySlug: map[string]*registry.Record{
		"fresh":  record("fresh", provision.StatusPending),
		"mid":    record("mid", provision.StatusInProgress),
		"broken": record("broken", provision.StatusFailed),
	}}
	rv, factoryCalls := newTestResolver(t, lk)
	h := rv.Middleware(capture(new(*Resolution)))

	for _, slug := range []string{"fresh", "mid"} {
		w := get(h, "http://"+slug+".modl.gg/")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200 provisioning signal", slug, w.Code)
		}
		if w.Header().Get("Retry-After") == "" {
			t.Fatalf("%s: missing Retry-After", slug)
		}
		var body map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["status"] != "provisioning" {
			t.Fatalf("%s: status field = %q", slug, body["status"])
		}
	}

	w := get(h, "http://broken.modl.gg/")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("failed tenant: status = %d, want 503", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "provisioning_failed" {
		t.Fatalf("failed tenant: error = %q", body["error"])
	}

	// None of the three states may reach the pool.
	if factoryCalls.Load() != 0 {
		t.Fatalf("factory called %d times for unservable tenants", factoryCalls.Load())
	}
}

func TestMiddleware_PlatformPathsBypass(t *testing.T) {
	lk := &fakeLookup{}
	rv, _ := newTestResolver(t, lk)

	var res *Resolution
	w := get(rv.Middleware(capture(&res)), "http://ghost.modl.gg/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("bypass path status = %d, want 200", w.Code)
	}
	if lk.calls.Load() != 0 {
		t.Fatal("bypass path hit the registry")
	}
}

func TestMiddleware_TenantIsolation(t *testing.T) {
	lk := &fakeLookup{bySlug: map[string]*registry.Record{
		"s1": record("s1", provision.StatusCompleted),
		"s2": record("s2", provision.StatusCompleted),
	}}
	rv, _ := newTestResolver(t, lk)

	var r1, r2 *Resolution
	get(rv.Middleware(capture(&r1)), "http://s1.modl.gg/")
	get(rv.Middleware(capture(&r2)), "http://s2.modl.gg/")

	if r1.Conn == r2.Conn {
		t.Fatal("two tenants share one pooled connection")
	}
	if r1.Record.DatabaseName == r2.Record.DatabaseName {
		t.Fatal("two tenants share one database name")
	}
}

func TestResolver_LookupCacheAbsorbsRepeats(t *testing.T) {
	lk := &fakeLookup{bySlug: map[string]*registry.Record{
		"acme": record("acme", provision.StatusCompleted),
	}}
	rv, _ := newTestResolver(t, lk)
	h := rv.Middleware(capture(new(*Resolution)))

	get(h, "http://acme.modl.gg/")
	get(h, "http://acme.modl.gg/")
	get(h, "http://ghost.modl.gg/") // miss is cached too
	get(h, "http://ghost.modl.gg/")

	if n := lk.calls.Load(); n != 2 {
		t.Fatalf("registry consulted %d times, want 2", n)
	}
}

func TestResolver_InvalidateDropsCacheAndConn(t *testing.T) {
	acme := record("acme", provision.StatusCompleted)
	lk := &fakeLookup{bySlug: map[string]*registry.Record{"acme": acme}}
	rv, factoryCalls := newTestResolver(t, lk)
	h := rv.Middleware(capture(new(*Resolution)))

	get(h, "http://acme.modl.gg/")
	rv.Invalidate(acme)
	get(h, "http://acme.modl.gg/")

	if lk.calls.Load() != 2 {
		t.Fatalf("registry consulted %d times after invalidate, want 2", lk.calls.Load())
	}
	if factoryCalls.Load() != 2 {
		t.Fatalf("factory called %d times after invalidate, want 2", factoryCalls.Load())
	}
}

func TestStatusHandler_ReportsProvisioningState(t *testing.T) {
	lk := &fakeLookup{bySlug: map[string]*registry.Record{
		"acme":  record("acme", provision.StatusCompleted),
		"fresh": record("fresh", provision.StatusPending),
	}}
	rv, factoryCalls := newTestResolver(t, lk)
	h := http.HandlerFunc(rv.StatusHandler)

	cases := []struct {
		host, status string
		code         int
	}{
		{"acme.modl.gg", "ready", http.StatusOK},
		{"fresh.modl.gg", "provisioning", http.StatusOK},
		{"ghost.modl.gg", "unknown", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := get(h, "http://"+tc.host+"/api/public/status")
		if w.Code != tc.code {
			t.Fatalf("%s: code = %d, want %d", tc.host, w.Code, tc.code)
		}
		var body map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["status"] != tc.status {
			t.Fatalf("%s: status = %q, want %q", tc.host, body["status"], tc.status)
		}
	}
	// Status polling never opens tenant connections.
	if factoryCalls.Load() != 0 {
		t.Fatalf("factory called %d times by status polls", factoryCalls.Load())
	}
}

func TestSplitHost(t *testing.T) {
	rv, _ := newTestResolver(t, &fakeLookup{})
	cases := []struct {
		host, slug, domain string
	}{
		{"acme.modl.gg", "acme", ""},
		{"modl.gg", "", ""},
		{"support.acme.example", "", "support.acme.example"},
		{"deep.acme.modl.gg", "deep", ""},
	}
	for _, tc := range cases {
		slug, domain := rv.SplitHost(tc.host)
		if slug != tc.slug || domain != tc.domain {
			t.Fatalf("SplitHost(%q) = (%q, %q), want (%q, %q)",
				tc.host, slug, domain, tc.slug, tc.domain)
		}
	}
}
