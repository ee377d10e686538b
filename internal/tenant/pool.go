// internal/tenant/pool.go
//
// Tenant connection pool.
//
// Context
// -------
// The pool is the one piece of mutable shared state in the resolution
// core: a process-wide map from tenant database name to a live *Conn,
// created lazily on first request, reused by every later request, and
// reclaimed on idle TTL, LRU pressure, or explicit invalidation.  All
// access goes through Acquire/Invalidate/Shutdown; nothing else touches
// the map.
//
// Concurrency
// -----------
// Concurrent first requests for the same never-before-seen tenant are
// collapsed by singleflight, so exactly one underlying connection is
// opened no matter how many requests race.  Creation runs under its own
// bounded timeout, detached from any single caller's context: a cancelled
// request must not poison the shared creation, and a hung database must
// not hold the in-flight marker forever.  Singleflight drops the key once
// Do returns, so a failed creation clears the marker and the next request
// retries cleanly.
//
// Notes
// -----
// • The control-plane registry connection is a separate singleton owned
//   by internal/registry; it never lives in this cache.
// • Oxford commas, two spaces after periods.
package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/modl-gg/panel/internal/metrics"
)

// Static defaults.  Override via Options.
const (
	IdleTTL        = 30 * time.Minute
	MaxEntries     = 100
	EvictInterval  = 5 * time.Minute
	ConnectTimeout = 10 * time.Second
)

// Factory opens a connection to the named tenant database.  Production
// wiring adapts database.ConnectWithOptions; tests count invocations.
type Factory func(ctx context.Context, dbName string) (Handle, error)

// Options tunes a Pool.  Zero fields fall back to the package defaults.
type Options struct {
	IdleTTL        time.Duration
	EvictInterval  time.Duration
	ConnectTimeout time.Duration
	MaxEntries     int

	// OnCreate runs once per freshly opened connection, before it becomes
	// visible to callers.  Main wires the model registrar's EnsureAll
	// here.  A failure closes the connection and surfaces to the caller.
	OnCreate func(ctx context.Context, c *Conn) error

	// OnEvict runs for every connection leaving the pool (eviction,
	// invalidation, shutdown).  Main wires the registrar's Release here.
	OnEvict func(c *Conn)
}

// Pool caches at most one live connection per tenant database name.
type Pool struct {
	factory Factory
	opts    Options

	sfg singleflight.Group
	m   sync.Map // dbName → *Conn

	evictTicker *time.Ticker
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewPool constructs a Pool and starts the background evictor.
func NewPool(factory Factory, opts Options) *Pool {
	if opts.IdleTTL == 0 {
		opts.IdleTTL = IdleTTL
	}
	if opts.EvictInterval == 0 {
		opts.EvictInterval = EvictInterval
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = ConnectTimeout
	}
	if opts.MaxEntries == 0 {
		opts.MaxEntries = MaxEntries
	}
	p := &Pool{
		factory:     factory,
		opts:        opts,
		evictTicker: time.NewTicker(opts.EvictInterval),
		stop:        make(chan struct{}),
	}
	go p.evictLoop()
	return p
}

// Acquire returns the live connection for dbName, opening one on demand.
// The same *Conn pointer is returned for every call until eviction or
// invalidation.  A connection in closing state is never returned.
func (p *Pool) Acquire(ctx context.Context, dbName string) (*Conn, error) {
	// Fast path: no I/O, no singleflight.
	if v, ok := p.m.Load(dbName); ok {
		c := v.(*Conn)
		// Touch before the state check.  An idle pass that wins the swap
		// to closing after this point re-reads lastSeen, sees the fresh
		// stamp, and reopens instead of retiring; touching after the
		// check would leave a window where a just-handed-out conn gets
		// retired underneath its caller.
		c.touch()
		if c.Open() {
			return c, nil
		}
		// Closing or closed: drop the stale entry and rebuild below.
		p.m.CompareAndDelete(dbName, v)
	}

	ch := p.sfg.DoChan(dbName, func() (any, error) {
		return p.create(dbName)
	})

	select {
	case <-ctx.Done():
		// The creation keeps running for the next caller; this caller
		// simply stops waiting.
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		c := res.Val.(*Conn)
		c.touch()
		return c, nil
	}
}

// create opens one connection under the pool's own timeout.  Runs inside
// the singleflight barrier.
func (p *Pool) create(dbName string) (*Conn, error) {
	// Double-check after the barrier: a racing Acquire may have finished
	// creation while this caller queued.
	if v, ok := p.m.Load(dbName); ok {
		c := v.(*Conn)
		if c.Open() {
			return c, nil
		}
		p.m.CompareAndDelete(dbName, v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ConnectTimeout)
	defer cancel()

	h, err := p.factory(ctx, dbName)
	if err != nil {
		metrics.TenantConnectErrorsTotal.Inc()
		return nil, fmt.Errorf("tenant %s: connect: %w", dbName, err)
	}

	c := newConn(dbName, h)
	if p.opts.OnCreate != nil {
		if err := p.opts.OnCreate(ctx, c); err != nil {
			metrics.TenantConnectErrorsTotal.Inc()
			_ = h.Disconnect(context.Background())
			return nil, fmt.Errorf("tenant %s: initialise: %w", dbName, err)
		}
	}

	p.m.Store(dbName, c)
	metrics.TenantConnectTotal.Inc()
	metrics.ActiveTenants.Inc()
	zap.L().Info("tenant connection opened", zap.String("db", dbName))
	return c, nil
}

// Invalidate forcibly closes and removes the entry for dbName.  Used when
// a tenant's underlying database is renamed, migrated, or deleted.  The
// next Acquire opens a fresh connection.
func (p *Pool) Invalidate(dbName string) {
	v, ok := p.m.LoadAndDelete(dbName)
	if !ok {
		return
	}
	c := v.(*Conn)
	if c.markClosing() {
		go p.retire(c, "invalidated")
	}
}

// retire runs the eviction hook and disconnects.  Never called with a
// conn still reachable from the map.
func (p *Pool) retire(c *Conn, why string) {
	if p.opts.OnEvict != nil {
		p.opts.OnEvict(c)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.close(ctx); err != nil {
		zap.L().Warn("tenant disconnect", zap.String("db", c.dbName), zap.Error(err))
	}
	metrics.TenantEvictTotal.Inc()
	metrics.ActiveTenants.Dec()
	zap.L().Info("tenant connection closed",
		zap.String("db", c.dbName), zap.String("reason", why))
}

// Len reports how many connections are currently pooled.
func (p *Pool) Len() int {
	n := 0
	p.m.Range(func(any, any) bool { n++; return true })
	return n
}

// Shutdown drains the pool: stops the evictor and closes every pooled
// connection within ctx's deadline.  Called once at graceful shutdown.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.evictTicker.Stop()
	})

	var firstErr error
	p.m.Range(func(key, v any) bool {
		p.m.Delete(key)
		c := v.(*Conn)
		if !c.markClosing() {
			return true
		}
		if p.opts.OnEvict != nil {
			p.opts.OnEvict(c)
		}
		if err := c.close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		metrics.ActiveTenants.Dec()
		return true
	})
	return firstErr
}
