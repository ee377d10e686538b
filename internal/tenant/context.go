// internal/tenant/context.go
//
// Per-request resolution result.
//
// Context
// -------
// The resolver constructs exactly one Resolution per request and stores it
// in the request context.  Downstream middleware and handlers read it
// instead of probing for ad hoc optional fields; the Outcome sum makes the
// four terminal states explicit.  The Resolution never outlives its
// request; only the *Conn it references is cached.
package tenant

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/modl-gg/panel/internal/registry"
)

// Outcome classifies how resolution ended for one request.
type Outcome int

const (
	// OutcomeResolved: tenant found, servable, connection attached.
	OutcomeResolved Outcome = iota
	// OutcomeNotFound: the host maps to no known tenant.
	OutcomeNotFound
	// OutcomeProvisioning: tenant exists but infrastructure is still being
	// set up; clients should poll.
	OutcomeProvisioning
	// OutcomeFailed: provisioning failed terminally; operator action needed.
	OutcomeFailed
	// OutcomeUnavailable: tenant is servable but its database could not be
	// reached, or the registry itself errored.
	OutcomeUnavailable
)

// String is used as the Prometheus outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeProvisioning:
		return "provisioning"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Resolution is the resolved binding for one HTTP request.
type Resolution struct {
	Outcome Outcome
	Host    string
	Slug    string
	Record  *registry.Record // snapshot used for the decision; may be nil
	Conn    *Conn            // non-nil only when Outcome == OutcomeResolved
	Err     error            // non-nil only for OutcomeUnavailable
}

// Resolved reports whether a connection is attached.
func (r *Resolution) Resolved() bool {
	return r != nil && r.Outcome == OutcomeResolved && r.Conn != nil
}

// Database returns the tenant database handle, or nil when unresolved.
func (r *Resolution) Database() *mongo.Database {
	if !r.Resolved() {
		return nil
	}
	return r.Conn.Database()
}

// resolutionKey is unexported to avoid context-key collisions.
type resolutionKey struct{}

// WithResolution returns a child context carrying res.
func WithResolution(ctx context.Context, res *Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey{}, res)
}

// FromContext returns the Resolution stored by the resolver middleware,
// or nil when it has not run (platform-level routes).
func FromContext(ctx context.Context) *Resolution {
	v, _ := ctx.Value(resolutionKey{}).(*Resolution)
	return v
}
