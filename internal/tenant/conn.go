// internal/tenant/conn.go
//
// Pooled tenant connection.
//
// Context
// -------
// A Conn wraps one live connection to one tenant's isolated database plus
// the bookkeeping the pool needs: creation time, an atomic last-used
// stamp for idle eviction, and an open/closing/closed state word.  The
// cache stores a *Conn per tenant database name; request handlers receive
// the same pointer for the lifetime of the entry (identity-stable reuse).
//
// Notes
// -----
//   - A Conn in closing state is never handed to a caller; Acquire treats
//     it as a miss and opens a replacement.
//   - Conn satisfies models.Conn, so compiled models are keyed by this
//     exact pointer and can never migrate to another tenant's connection.
package tenant

import (
	"context"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Handle is the minimal surface the pool needs from a live connection.
// *database.Client satisfies it; pool tests substitute a fake.
type Handle interface {
	Database(name string) *mongo.Database
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

// Conn is one pooled connection to a tenant database.
type Conn struct {
	dbName    string
	handle    Handle
	createdAt time.Time
	lastSeen  atomic.Int64 // UnixNano
	state     atomic.Int32
}

func newConn(dbName string, h Handle) *Conn {
	c := &Conn{
		dbName:    dbName,
		handle:    h,
		createdAt: time.Now(),
	}
	c.lastSeen.Store(time.Now().UnixNano())
	return c
}

// DBName returns the tenant database name this connection is keyed by.
func (c *Conn) DBName() string { return c.dbName }

// Handle exposes the underlying connection.
func (c *Conn) Handle() Handle { return c.handle }

// Database returns the tenant's own database handle.  This is the method
// the model registrar binds against.
func (c *Conn) Database() *mongo.Database { return c.handle.Database(c.dbName) }

// Open reports whether the connection may be handed to a caller.
func (c *Conn) Open() bool { return c.state.Load() == stateOpen }

// touch refreshes the last-used stamp.  Called on every Acquire before
// eviction is considered, per the pool's anti-race contract.
func (c *Conn) touch() { c.lastSeen.Store(time.Now().UnixNano()) }

// idleFor returns how long the connection has gone unused.
func (c *Conn) idleFor(now int64) time.Duration {
	return time.Duration(now - c.lastSeen.Load())
}

// markClosing transitions open → closing.  Returns false when another
// goroutine won the race or the connection is already closed.
func (c *Conn) markClosing() bool {
	return c.state.CompareAndSwap(stateOpen, stateClosing)
}

// reopen undoes markClosing when the evictor discovers the connection was
// touched between the idle check and the state swap.
func (c *Conn) reopen() bool {
	return c.state.CompareAndSwap(stateClosing, stateOpen)
}

// close disconnects the underlying handle.  Idempotent.
func (c *Conn) close(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateClosing, stateClosed) {
		return nil
	}
	return c.handle.Disconnect(ctx)
}
