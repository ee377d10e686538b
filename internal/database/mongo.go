// Package database centralises MongoDB connection helpers.  Every live
// connection in the panel (the control-plane registry singleton and each
// per-tenant pool) is opened through this package so pool sizing and
// timeout policy live in one place.
//
// Public entry points:
//
//	Connect(ctx, uri)               – quick helper with conservative pool sizes.
//	ConnectWithOptions(ctx, uri, o) – fine-grained control.
//
// Both helpers ping the primary before returning so callers can fail fast
// during bootstrap.  Callers should Disconnect() the returned *Client when
// no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Options tunes one client.  The zero value is usable; missing fields fall
// back to the package defaults below.
type Options struct {
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	AppName        string
}

const (
	defaultMaxPool        = 10
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
)

// Client wraps *mongo.Client behind the minimal surface the tenant pool and
// registry need.  Keeping the wrapper small lets tests substitute a fake
// without standing up a mongod.
type Client struct {
	mc *mongo.Client
}

// Connect returns a *Client with default pool sizes.  Suitable for the
// registry singleton and for test setups.
func Connect(ctx context.Context, uri string) (*Client, error) {
	return ConnectWithOptions(ctx, uri, Options{})
}

// ConnectWithOptions lets callers tune pool sizes per client.  Used by the
// tenant pool to keep per-tenant resource usage small.
func ConnectWithOptions(ctx context.Context, uri string, o Options) (*Client, error) {
	if o.MaxPoolSize == 0 {
		o.MaxPoolSize = defaultMaxPool
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.PingTimeout == 0 {
		o.PingTimeout = defaultPingTimeout
	}

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(o.MaxPoolSize).
		SetMinPoolSize(o.MinPoolSize).
		SetConnectTimeout(o.ConnectTimeout)
	if o.AppName != "" {
		opts.SetAppName(o.AppName)
	}

	connectCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()
	mc, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	// Fail fast: the driver connects lazily, so ping the primary before
	// handing the client out.
	pingCtx, cancelPing := context.WithTimeout(ctx, o.PingTimeout)
	defer cancelPing()
	if err := mc.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Client{mc: mc}, nil
}

// Database returns a handle on the named database.
func (c *Client) Database(name string) *mongo.Database {
	return c.mc.Database(name)
}

// Ping checks the primary within the caller's deadline.
func (c *Client) Ping(ctx context.Context) error {
	return c.mc.Ping(ctx, readpref.Primary())
}

// Disconnect closes every socket held by the client.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.mc.Disconnect(ctx)
}
