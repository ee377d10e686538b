// internal/models/registrar.go
//
// Model Registrar: binds named schemas to a specific tenant connection.
//
// Context
// -------
// Compiled models must never be shared across tenant connections; a model
// is a typed collection handle plus its index set, bound to one tenant's
// database.  The registrar caches compiled models keyed by
// (connection identity, model name) so that:
//
//   - asking twice on the same connection returns the same *Model,
//   - asking on two different connections returns two independent models
//     with independent underlying collections, and
//   - an unknown model name panics; that is a programmer error, not a
//     runtime condition to recover from.
//
// Index creation is deliberately split out (`Model.EnsureIndexes`) so that
// compiling a model stays free of I/O; the tenant pool runs it once right
// after a connection is opened.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package models

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

// Conn is the binding target: anything that yields the tenant's own
// database.  *tenant.Conn satisfies it.  The interface value doubles as
// the identity key, so implementations must be comparable (pointers are).
type Conn interface {
	Database() *mongo.Database
}

// Model is one schema compiled against one connection.
type Model struct {
	name    string
	coll    *mongo.Collection
	indexes []mongo.IndexModel

	indexOnce sync.Once
	indexErr  error
}

// Name returns the registered model name, e.g. "Player".
func (m *Model) Name() string { return m.name }

// Collection returns the bound collection handle.
func (m *Model) Collection() *mongo.Collection { return m.coll }

// EnsureIndexes creates the model's indexes exactly once per compiled
// model.  Subsequent calls return the first outcome.
func (m *Model) EnsureIndexes(ctx context.Context) error {
	m.indexOnce.Do(func() {
		if len(m.indexes) == 0 {
			return
		}
		_, m.indexErr = m.coll.Indexes().CreateMany(ctx, m.indexes)
	})
	return m.indexErr
}

// Registrar caches compiled models.  One registrar serves the whole
// process; isolation comes from the per-connection keying, not from
// multiple registrar instances.
type Registrar struct {
	mu       sync.Mutex
	compiled map[Conn]map[string]*Model
}

// NewRegistrar returns an empty registrar.
func NewRegistrar() *Registrar {
	return &Registrar{compiled: make(map[Conn]map[string]*Model)}
}

// Get returns the model named name bound to conn, compiling it on first
// use.  Registering the same name twice on one connection is a no-op.
// Unknown names panic.
func (r *Registrar) Get(conn Conn, name string) *Model {
	sch, ok := schemas[name]
	if !ok {
		panic(fmt.Sprintf("models: unknown model %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byName := r.compiled[conn]
	if byName == nil {
		byName = make(map[string]*Model, len(schemas))
		r.compiled[conn] = byName
	}
	if m, ok := byName[name]; ok {
		return m
	}

	m := &Model{
		name:    name,
		coll:    conn.Database().Collection(sch.collection),
		indexes: sch.indexes,
	}
	byName[name] = m
	return m
}

// EnsureAll compiles every known schema against conn and creates indexes.
// The tenant pool calls this once per new connection.
func (r *Registrar) EnsureAll(ctx context.Context, conn Conn) error {
	for name := range schemas {
		if err := r.Get(conn, name).EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("models: ensure %s indexes: %w", name, err)
		}
	}
	return nil
}

// Release drops every model compiled against conn.  The pool calls this
// when the connection is evicted or invalidated, so a recycled connection
// always recompiles from scratch.
func (r *Registrar) Release(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.compiled, conn)
}

// Known reports whether name is a registered schema.
func Known(name string) bool {
	_, ok := schemas[name]
	return ok
}
