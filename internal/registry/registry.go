// internal/registry/registry.go
//
// Global Registry: control-plane access to the `servers` collection.
//
// Context
// -------
// The registry connection is a distinguished singleton, opened once at boot
// and never evicted; reconnect-on-drop is handled by the driver's server
// monitor.  Read helpers (`BySubdomain`, `ByCustomDomain`) sit on the HTTP
// bootstrap path and are wrapped by the resolver's short-TTL cache.  Write
// helpers serve the out-of-scope collaborators: signup, the provisioning
// worker, billing webhooks, and the domain-verification workflow.
//
// Workflow
// --------
//  1. Callers supply a *database.Client already connected to the
//     control-plane deployment.
//  2. Each read helper executes exactly one filtered FindOne, excluding
//     soft-deleted documents at query level to keep callers simple.
//  3. Provisioning writes go through guarded FindOneAndUpdate calls so an
//     illegal transition can never land, even when two workers race.
//
// Notes
// -----
//   - Errors are returned verbatim so the caller can wrap or log them.
//   - Oxford commas, two spaces after periods.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/modl-gg/panel/internal/database"
	"github.com/modl-gg/panel/internal/provision"
)

const serversCollection = "servers"

// ErrNotFound is returned when no server matches the lookup key.
var ErrNotFound = errors.New("registry: server not found")

// ErrSlugTaken is returned by Create when the slug, derived database name,
// or custom domain is already owned, including by a soft-deleted tenant.
var ErrSlugTaken = errors.New("registry: slug or database name already in use")

// ErrBadTransition is returned when a provisioning update would violate the
// state machine.
var ErrBadTransition = errors.New("registry: illegal provisioning transition")

// Registry wraps the control-plane database handle.
type Registry struct {
	cli *database.Client
	col *mongo.Collection
}

// New returns a Registry bound to the named control-plane database.
func New(cli *database.Client, dbName string) *Registry {
	return &Registry{
		cli: cli,
		col: cli.Database(dbName).Collection(serversCollection),
	}
}

// Client exposes the underlying singleton for lifecycle management.
func (r *Registry) Client() *database.Client { return r.cli }

// EnsureIndexes creates the uniqueness and lookup indexes the resolver
// relies on.  Safe to call on every boot.
func (r *Registry) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "databaseName", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "customDomain", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "customDomain", Value: bson.D{{Key: "$type", Value: "string"}}},
				}),
		},
	})
	return err
}

//
// Read path (resolver)
//

// BySubdomain fetches the server owning slug.  Soft-deleted tenants are
// excluded at query level.
func (r *Registry) BySubdomain(ctx context.Context, slug string) (*Record, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

// ByCustomDomain fetches the server whose *verified* custom domain matches
// host.  The match is case-insensitive because the stored value is
// lowercased and the input is normalised here.
func (r *Registry) ByCustomDomain(ctx context.Context, host string) (*Record, error) {
	return r.findOne(ctx, bson.M{
		"customDomain":       NormalizeDomain(host),
		"customDomainStatus": DomainActive,
	})
}

func (r *Registry) findOne(ctx context.Context, filter bson.M) (*Record, error) {
	filter["deletedAt"] = bson.M{"$exists": false}
	var rec Record
	err := r.col.FindOne(ctx, filter).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

//
// Write path (signup, provisioning worker, billing, domains)
//

// Create inserts a new tenant in `pending` state with a deterministically
// derived database name.  The name must be globally unused, including by
// soft-deleted tenants; a name is never recycled.
func (r *Registry) Create(ctx context.Context, slug, adminEmail, plan string) (*Record, error) {
	if !ValidSlug(slug) {
		return nil, fmt.Errorf("registry: invalid slug %q", slug)
	}
	dbName := DatabaseNameForSlug(slug)

	// Uniqueness check spans soft-deleted documents on purpose.
	n, err := r.col.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"slug": slug},
		bson.M{"databaseName": dbName},
	}})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrSlugTaken
	}

	now := time.Now().UTC()
	rec := &Record{
		Slug:               slug,
		AdminEmail:         adminEmail,
		Plan:               plan,
		SubscriptionStatus: SubInactive,
		Provisioning:       provision.StatusPending,
		DatabaseName:       dbName,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	res, err := r.col.InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid
	}
	return rec, nil
}

// advanceProvisioning performs a guarded status transition.  The filter
// pins the expected current state, so a racing second worker gets
// ErrBadTransition instead of silently double-claiming.
func (r *Registry) advanceProvisioning(ctx context.Context, slug string, from, to provision.Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s → %s", ErrBadTransition, from, to)
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"slug": slug, "provisioningStatus": from,
			"deletedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"provisioningStatus": to,
			"updatedAt":          time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s is not in state %s", ErrBadTransition, slug, from)
	}
	return nil
}

// ClaimProvisioning marks a pending tenant as in-progress.  Exactly one of
// two racing provisioning workers wins.
func (r *Registry) ClaimProvisioning(ctx context.Context, slug string) error {
	return r.advanceProvisioning(ctx, slug, provision.StatusPending, provision.StatusInProgress)
}

// CompleteProvisioning marks an in-progress tenant servable.
func (r *Registry) CompleteProvisioning(ctx context.Context, slug string) error {
	return r.advanceProvisioning(ctx, slug, provision.StatusInProgress, provision.StatusCompleted)
}

// FailProvisioning marks an in-progress tenant terminally failed.
func (r *Registry) FailProvisioning(ctx context.Context, slug string) error {
	return r.advanceProvisioning(ctx, slug, provision.StatusInProgress, provision.StatusFailed)
}

// RetryProvisioning is the operator-only reset from failed back to pending.
// There is deliberately no automatic path that calls this.
func (r *Registry) RetryProvisioning(ctx context.Context, slug string) error {
	return r.advanceProvisioning(ctx, slug, provision.StatusFailed, provision.StatusPending)
}

// SetSubscription is called by the billing webhook receiver.  It is the
// only writer of subscription fields.
func (r *Registry) SetSubscription(ctx context.Context, slug string, status SubscriptionStatus, plan string, periodEnd *time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("registry: invalid subscription status %q", status)
	}
	set := bson.M{
		"subscriptionStatus": status,
		"updatedAt":          time.Now().UTC(),
	}
	if plan != "" {
		set["plan"] = plan
	}
	if periodEnd != nil {
		set["currentPeriodEnd"] = *periodEnd
	}
	return r.updateOne(ctx, slug, bson.M{"$set": set})
}

// SetCustomDomain is called by the domain-verification workflow as it walks
// pending → verifying → active | error.  Passing an empty domain detaches
// the custom domain entirely.
func (r *Registry) SetCustomDomain(ctx context.Context, slug, domain string, status DomainStatus) error {
	if domain == "" {
		return r.updateOne(ctx, slug, bson.M{
			"$unset": bson.M{"customDomain": "", "customDomainStatus": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		})
	}
	return r.updateOne(ctx, slug, bson.M{"$set": bson.M{
		"customDomain":       NormalizeDomain(domain),
		"customDomainStatus": status,
		"updatedAt":          time.Now().UTC(),
	}})
}

// SoftDelete retires a tenant.  The document, slug, and database name stay
// behind so neither can ever be reused.
func (r *Registry) SoftDelete(ctx context.Context, slug string) error {
	now := time.Now().UTC()
	return r.updateOne(ctx, slug, bson.M{"$set": bson.M{
		"deletedAt": now,
		"updatedAt": now,
	}})
}

func (r *Registry) updateOne(ctx context.Context, slug string, update bson.M) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"slug": slug, "deletedAt": bson.M{"$exists": false}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
