// internal/models/schemas.go
//
// The tenant-scoped schema set.
//
// Context
// -------
// Every tenant database carries the same collections; only the binding
// differs.  Each schema names its collection and the indexes the panel's
// route handlers rely on.  The document structs are the shared shapes used
// by handlers; fields the panel core never touches live in `Extra`-style
// bson maps on the handler side, not here.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Model names.  Use these constants, not raw strings, when asking the
// registrar for a model.
const (
	ModelPlayer                = "Player"
	ModelTicket                = "Ticket"
	ModelStaff                 = "Staff"
	ModelSettings              = "Settings"
	ModelInvitation            = "Invitation"
	ModelKnowledgebaseArticle  = "KnowledgebaseArticle"
	ModelKnowledgebaseCategory = "KnowledgebaseCategory"
	ModelAuditLog              = "AuditLog"
	ModelSession               = "Session"
)

type schema struct {
	collection string
	indexes    []mongo.IndexModel
}

var schemas = map[string]schema{
	ModelPlayer: {
		collection: "players",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "minecraftUuid", Value: 1}},
				Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "usernames.username", Value: 1}}},
		},
	},
	ModelTicket: {
		collection: "tickets",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "creatorUuid", Value: 1}}},
		},
	},
	ModelStaff: {
		collection: "staff",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true)},
		},
	},
	ModelSettings: {
		collection: "settings",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "key", Value: 1}},
				Options: options.Index().SetUnique(true)},
		},
	},
	ModelInvitation: {
		collection: "invitations",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0)},
		},
	},
	ModelKnowledgebaseArticle: {
		collection: "knowledgebase_articles",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "categoryId", Value: 1}, {Key: "ordinal", Value: 1}}},
		},
	},
	ModelKnowledgebaseCategory: {
		collection: "knowledgebase_categories",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true)},
		},
	},
	ModelAuditLog: {
		collection: "audit_logs",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "actorId", Value: 1}, {Key: "at", Value: -1}}},
		},
	},
	ModelSession: {
		collection: "sessions",
		indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0)},
		},
	},
}

//
// Shared document shapes
//

// Player is one known Minecraft player on this server.
type Player struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	MinecraftUUID string             `bson:"minecraftUuid"`
	Usernames     []PlayerUsername   `bson:"usernames"`
	Punishments   []Punishment       `bson:"punishments,omitempty"`
	FirstSeenAt   time.Time          `bson:"firstSeenAt"`
	LastSeenAt    time.Time          `bson:"lastSeenAt"`
}

// PlayerUsername records one historical name with its observation time.
type PlayerUsername struct {
	Username string    `bson:"username"`
	SeenAt   time.Time `bson:"seenAt"`
}

// Punishment is one moderation action attached to a player.
type Punishment struct {
	ID        string     `bson:"id"`
	Type      string     `bson:"type"` // ban, mute, kick, warn
	Reason    string     `bson:"reason"`
	IssuerID  string     `bson:"issuerId"`
	IssuedAt  time.Time  `bson:"issuedAt"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
	RevokedAt *time.Time `bson:"revokedAt,omitempty"`
}

// Ticket is one support ticket or punishment appeal.
type Ticket struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Subject     string             `bson:"subject"`
	Type        string             `bson:"type"` // support, appeal, report
	Status      string             `bson:"status"`
	CreatorUUID string             `bson:"creatorUuid"`
	AssigneeID  *primitive.ObjectID `bson:"assigneeId,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// Staff is one panel staff member of this tenant.
type Staff struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Username  string             `bson:"username"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// Setting is one key-value panel setting.
type Setting struct {
	ID    primitive.ObjectID `bson:"_id,omitempty"`
	Key   string             `bson:"key"`
	Value bson.Raw           `bson:"value"`
}

// Invitation is one outstanding staff invite.  The TTL index on ExpiresAt
// reaps stale invites server-side.
type Invitation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Code      string             `bson:"code"`
	Email     string             `bson:"email"`
	Role      string             `bson:"role"`
	InviterID primitive.ObjectID `bson:"inviterId"`
	CreatedAt time.Time          `bson:"createdAt"`
	ExpiresAt time.Time          `bson:"expiresAt"`
}

// KnowledgebaseCategory groups articles.
type KnowledgebaseCategory struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Slug    string             `bson:"slug"`
	Title   string             `bson:"title"`
	Ordinal int                `bson:"ordinal"`
}

// KnowledgebaseArticle is one public help article.
type KnowledgebaseArticle struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Slug       string             `bson:"slug"`
	Title      string             `bson:"title"`
	Body       string             `bson:"body"`
	CategoryID primitive.ObjectID `bson:"categoryId"`
	Ordinal    int                `bson:"ordinal"`
	Published  bool               `bson:"published"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

// AuditLog records one staff action for accountability.
type AuditLog struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	ActorID primitive.ObjectID `bson:"actorId"`
	Action  string             `bson:"action"`
	Target  string             `bson:"target,omitempty"`
	Detail  string             `bson:"detail,omitempty"`
	At      time.Time          `bson:"at"`
}
