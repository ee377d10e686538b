// internal/models/registrar_test.go
//
// Unit-tests for the per-connection model registrar.
//
// Context
// -------
// Compiling a model is I/O-free, so these tests run against a lazily
// initialised mongo client that never dials: the driver only touches the
// network on actual operations, and the registrar performs none until
// EnsureIndexes.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package models

import (
	"context"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeConn binds the registrar to one named database on a lazy client.
type fakeConn struct {
	db *mongo.Database
}

func (f *fakeConn) Database() *mongo.Database { return f.db }

func lazyClient(t *testing.T) *mongo.Client {
	t.Helper()
	// The driver connects lazily; no mongod is required as long as no
	// operation runs.
	cli, err := mongo.Connect(context.Background(),
		options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Fatalf("lazy client: %v", err)
	}
	t.Cleanup(func() { _ = cli.Disconnect(context.Background()) })
	return cli
}

func TestGet_IdempotentPerConnection(t *testing.T) {
	cli := lazyClient(t)
	reg := NewRegistrar()
	conn := &fakeConn{db: cli.Database("modl_acme")}

	m1 := reg.Get(conn, ModelPlayer)
	m2 := reg.Get(conn, ModelPlayer)
	if m1 != m2 {
		t.Fatal("repeat Get returned a different *Model")
	}
	if m1.Name() != ModelPlayer {
		t.Fatalf("Name = %q, want %q", m1.Name(), ModelPlayer)
	}
	if m1.Collection() == nil {
		t.Fatal("compiled model has no collection")
	}
}

func TestGet_IsolatedAcrossConnections(t *testing.T) {
	cli := lazyClient(t)
	reg := NewRegistrar()
	a := &fakeConn{db: cli.Database("modl_acme")}
	b := &fakeConn{db: cli.Database("modl_umbrella")}

	ma := reg.Get(a, ModelTicket)
	mb := reg.Get(b, ModelTicket)
	if ma == mb {
		t.Fatal("two connections share one compiled model")
	}
	if ma.Collection().Database().Name() == mb.Collection().Database().Name() {
		t.Fatal("two tenants' models point at the same database")
	}
}

func TestGet_UnknownNamePanics(t *testing.T) {
	cli := lazyClient(t)
	reg := NewRegistrar()
	conn := &fakeConn{db: cli.Database("modl_acme")}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Get with unknown name did not panic")
		}
		if !strings.Contains(r.(string), "unknown model") {
			t.Fatalf("panic message = %v", r)
		}
	}()
	reg.Get(conn, "Ghost")
}

func TestRelease_DropsCompiledModels(t *testing.T) {
	cli := lazyClient(t)
	reg := NewRegistrar()
	conn := &fakeConn{db: cli.Database("modl_acme")}

	m1 := reg.Get(conn, ModelStaff)
	reg.Release(conn)
	m2 := reg.Get(conn, ModelStaff)
	if m1 == m2 {
		t.Fatal("Release kept the compiled model alive")
	}
}

func TestKnown(t *testing.T) {
	for _, name := range []string{
		ModelPlayer, ModelTicket, ModelStaff, ModelSettings,
		ModelInvitation, ModelAuditLog, ModelSession,
	} {
		if !Known(name) {
			t.Fatalf("Known(%q) = false", name)
		}
	}
	if Known("Ghost") {
		t.Fatal(`Known("Ghost") = true`)
	}
}
