// internal/registry/record.go
//
// `servers` collection document model.
//
// Context
// -------
// The `Record` struct mirrors one document in the control-plane **servers**
// collection, capturing the tenant's subdomain slug, optional verified
// custom domain, billing state, provisioning status, and the name of its
// isolated database.  It is read by the request resolver on every cache
// miss and written by the signup, billing-webhook, provisioning, and
// domain-verification workflows.
//
// Notes
// -----
// • `Slug` and `DatabaseName` are unique forever; the registry never reuses
//   a database name, even after tenant deletion, so a new tenant can never
//   inherit another tenant's data.
// • `CustomDomain` is stored lowercased; lookups are exact matches.
// • Nullable timestamps are `*time.Time`; callers must nil-check before use.
package registry

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/modl-gg/panel/internal/provision"
)

//
// Subscription status
//

// SubscriptionStatus mirrors the billing provider's subscription states plus
// the local `inactive` default for tenants that never started a plan.
type SubscriptionStatus string

const (
	SubActive     SubscriptionStatus = "active"
	SubCanceled   SubscriptionStatus = "canceled"
	SubPastDue    SubscriptionStatus = "past_due"
	SubTrialing   SubscriptionStatus = "trialing"
	SubIncomplete SubscriptionStatus = "incomplete"
	SubUnpaid     SubscriptionStatus = "unpaid"
	SubPaused     SubscriptionStatus = "paused"
	SubInactive   SubscriptionStatus = "inactive"
)

// Valid reports whether s is a known subscription status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubActive, SubCanceled, SubPastDue, SubTrialing,
		SubIncomplete, SubUnpaid, SubPaused, SubInactive:
		return true
	}
	return false
}

// Paying reports whether the subscription grants paid-plan features.
// Resolution does not gate on this; route handlers consult it.
func (s SubscriptionStatus) Paying() bool {
	return s == SubActive || s == SubTrialing
}

//
// Custom-domain verification sub-state
//

// DomainStatus tracks the custom-domain verification workflow.  It is a
// state machine independent of provisioning status; the resolver reconciles
// the two by only matching custom domains whose status is `active`.
type DomainStatus string

const (
	DomainPending   DomainStatus = "pending"
	DomainVerifying DomainStatus = "verifying"
	DomainActive    DomainStatus = "active"
	DomainError     DomainStatus = "error"
)

//
// Record
//

// Record mirrors one document in the `servers` collection.
type Record struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Slug               string             `bson:"slug"`
	AdminEmail         string             `bson:"adminEmail"`
	Plan               string             `bson:"plan"`
	SubscriptionStatus SubscriptionStatus `bson:"subscriptionStatus"`
	CurrentPeriodEnd   *time.Time         `bson:"currentPeriodEnd,omitempty"`
	Provisioning       provision.Status   `bson:"provisioningStatus"`
	DatabaseName       string             `bson:"databaseName"`
	CustomDomain       string             `bson:"customDomain,omitempty"`
	CustomDomainStatus DomainStatus       `bson:"customDomainStatus,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
	DeletedAt          *time.Time         `bson:"deletedAt,omitempty"`
}

// Deleted reports whether the tenant has been soft-deleted.
func (r *Record) Deleted() bool { return r.DeletedAt != nil }

// DomainServable reports whether the record may be matched through its
// custom domain.  A domain mid-verification never routes traffic.
func (r *Record) DomainServable() bool {
	return r.CustomDomain != "" && r.CustomDomainStatus == DomainActive
}

//
// Slug and database-name derivation
//

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidSlug reports whether slug is usable as a subdomain label: lowercase
// alphanumerics and interior hyphens, at most 63 characters.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// DatabaseNameForSlug derives the tenant's database name deterministically
// from the slug.  MongoDB database names reject hyphens, so they map to
// underscores: "mega-craft" → "modl_mega_craft".
func DatabaseNameForSlug(slug string) string {
	return "modl_" + strings.ReplaceAll(slug, "-", "_")
}

// NormalizeDomain canonicalises a custom domain for storage and lookup:
// lowercase, no trailing dot.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
