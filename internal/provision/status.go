// internal/provision/status.go
//
// Tenant provisioning lifecycle.
//
// Context
// -------
// Every server record carries a provisioning status that gates whether the
// resolver will hand out a database connection for it:
//
//	pending → in-progress → completed
//	                      ↘ failed
//
// The transitions are driven by the external provisioning worker, which
// calls back into the registry.  The request path only ever *reads* the
// status.  `failed` is terminal; an operator must explicitly reset it to
// `pending` (see registry.RetryProvisioning), there is no automatic retry.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package provision

// Status is the provisioning state stored on a server record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// transitions enumerates every legal edge, including the operator-driven
// failed → pending reset.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {StatusPending}, // operator retry only
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Servable reports whether a tenant in this state may receive a database
// connection.  Only completed tenants are servable.
func (s Status) Servable() bool { return s == StatusCompleted }

// InFlight reports whether provisioning is still underway.  Clients polling
// a tenant in this state should retry shortly rather than give up.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusInProgress
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
