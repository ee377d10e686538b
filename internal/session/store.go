// internal/session/store.go
//
// Per-tenant session persistence.
//
// Context
// -------
// Sessions live in each tenant's *own* database ("sessions" collection,
// TTL-indexed on expiresAt), so one tenant's sessions are structurally
// invisible to every other tenant.  The cookie carries only an opaque
// identifier, never the tenant or the user, so tampering with it
// cannot redirect a request to another tenant: the resolver picks the
// tenant from the Host header alone, and the cookie is only meaningful
// within whatever tenant database that resolution produced.
//
// Workflow
// --------
//   - Login handlers call Create after credential verification; the new
//     session records the staff identity plus the device fingerprint
//     collected by internal/requestinfo.
//   - The Middleware (middleware.go) loads the session on every resolved
//     request and attaches auth.Identity to the context.
//   - Logout calls Destroy, which removes the document and clears the
//     cookie.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/modl-gg/panel/internal/auth"
	"github.com/modl-gg/panel/internal/models"
	"github.com/modl-gg/panel/internal/requestinfo"
)

// Record is one server-side session document.
type Record struct {
	ID         string    `bson:"_id"` // opaque UUID, the only value the cookie sees
	UserID     string    `bson:"userId"`
	Email      string    `bson:"email"`
	Username   string    `bson:"username"`
	Role       string    `bson:"role"`
	Device     Device    `bson:"device"`
	CreatedAt  time.Time `bson:"createdAt"`
	LastSeenAt time.Time `bson:"lastSeenAt"`
	ExpiresAt  time.Time `bson:"expiresAt"`
}

// Device is the login fingerprint shown on the "active sessions" page.
type Device struct {
	Browser string `bson:"browser,omitempty"`
	OS      string `bson:"os,omitempty"`
	Kind    string `bson:"kind,omitempty"`
	IP      string `bson:"ip,omitempty"`
}

// Options tunes the store.  Zero values fall back to the defaults below.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool // set in production; httptest requests are plain HTTP
}

const (
	defaultCookieName = "modl_session"
	defaultTTL        = 14 * 24 * time.Hour
)

// Store issues, loads, and destroys sessions against whichever tenant
// connection the resolver attached.  One Store serves all tenants; the
// isolation lives in the models registrar's per-connection keying.
type Store struct {
	registrar *models.Registrar
	opts      Options
}

// NewStore wires a Store to the process-wide model registrar.
func NewStore(registrar *models.Registrar, opts Options) *Store {
	if opts.CookieName == "" {
		opts.CookieName = defaultCookieName
	}
	if opts.TTL == 0 {
		opts.TTL = defaultTTL
	}
	return &Store{registrar: registrar, opts: opts}
}

func (s *Store) collection(conn models.Conn) *mongo.Collection {
	return s.registrar.Get(conn, models.ModelSession).Collection()
}

// Create persists a new session for ident and sets the cookie.  Returns
// the opaque session id.
func (s *Store) Create(ctx context.Context, conn models.Conn, w http.ResponseWriter, ident auth.Identity, info *requestinfo.Info) (string, error) {
	now := time.Now().UTC()
	rec := Record{
		ID:         uuid.NewString(),
		UserID:     ident.ID,
		Email:      ident.Email,
		Username:   ident.Username,
		Role:       string(ident.Role),
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(s.opts.TTL),
	}
	if info != nil {
		rec.Device = Device{
			Browser: info.UA.Browser,
			OS:      info.UA.OS,
			Kind:    info.UA.Device,
		}
		if info.IP != nil {
			rec.Device.IP = info.IP.String()
		}
	}

	if _, err := s.collection(conn).InsertOne(ctx, rec); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    rec.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  rec.ExpiresAt,
	})
	return rec.ID, nil
}

// Load resolves the request's cookie to an identity.  ok is false when
// the cookie is absent, unknown, or expired.
func (s *Store) Load(ctx context.Context, conn models.Conn, r *http.Request) (auth.Identity, bool) {
	c, err := r.Cookie(s.opts.CookieName)
	if err != nil || c.Value == "" {
		return auth.Identity{}, false
	}

	var rec Record
	err = s.collection(conn).FindOne(ctx, bson.M{
		"_id":       c.Value,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return auth.Identity{}, false
	}
	if err != nil {
		zap.L().Warn("session load", zap.Error(err))
		return auth.Identity{}, false
	}

	// Best-effort activity stamp; a lost update only skews the sessions
	// page, never auth.
	go func(id string, coll *mongo.Collection) {
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = coll.UpdateByID(uctx, id,
			bson.M{"$set": bson.M{"lastSeenAt": time.Now().UTC()}})
	}(rec.ID, s.collection(conn))

	return auth.Identity{
		ID:       rec.UserID,
		Email:    rec.Email,
		Username: rec.Username,
		Role:     auth.Role(rec.Role),
	}, true
}

// Destroy removes the request's session document and clears the cookie.
// Missing cookies are a no-op.
func (s *Store) Destroy(ctx context.Context, conn models.Conn, w http.ResponseWriter, r *http.Request) error {
	c, err := r.Cookie(s.opts.CookieName)
	if err == nil && c.Value != "" {
		if _, err := s.collection(conn).DeleteOne(ctx, bson.M{"_id": c.Value}); err != nil {
			return err
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return nil
}
