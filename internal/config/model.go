// internal/config/model.go
//
// Typed configuration model for the modl panel.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                        – dotenv values,
//   • `conf/global.yaml`                     – primary static file,
//   • `MODL_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Mongo section
//

// Mongo holds connection settings for the control-plane registry and the
// per-tenant pools.  The registry URI usually carries a `vault:` credential
// reference so the password never lands in YAML or git history.
type Mongo struct {
	RegistryURI    string        `koanf:"registry_uri" validate:"required"`
	RegistryDB     string        `koanf:"registry_db"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	PingTimeout    time.Duration `koanf:"ping_timeout"`
	TenantMaxPool  uint64        `koanf:"tenant_max_pool"`
	TenantMinPool  uint64        `koanf:"tenant_min_pool"`
}

//
// Tenancy section
//

// Tenancy controls host-to-tenant resolution and the connection cache.
type Tenancy struct {
	// DomainSuffix is the platform's shared hostname space; a request for
	// `acme.modl.gg` resolves the slug `acme` when the suffix is `modl.gg`.
	DomainSuffix string `koanf:"domain_suffix" validate:"required,fqdn"`

	// LookupCacheTTL bounds the staleness window for registry lookups on
	// the hot path.  Keep it in seconds, not hours, so plan and
	// provisioning changes propagate quickly.
	LookupCacheTTL time.Duration `koanf:"lookup_cache_ttl"`

	IdleTTL       time.Duration `koanf:"idle_ttl"`
	MaxEntries    int           `koanf:"max_entries"`
	EvictInterval time.Duration `koanf:"evict_interval"`

	// BypassPrefixes lists platform paths that must stay reachable without
	// a resolved tenant (webhooks, health, marketing, static assets).
	BypassPrefixes []string `koanf:"bypass_prefixes"`
}

//
// Session section
//

// Session holds cookie and server-side session tunables.
type Session struct {
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
	Secure     bool          `koanf:"secure"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or MODL_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	Mongo   Mongo   `koanf:"mongo"`
	Tenancy Tenancy `koanf:"tenancy"`
	Session Session `koanf:"session"`
	Paths   Paths   `koanf:"-"`
}

// defaults fills zero values the YAML file is allowed to omit.
func (c *Config) defaults() {
	if c.Mongo.RegistryDB == "" {
		c.Mongo.RegistryDB = "modl_global"
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = 10 * time.Second
	}
	if c.Mongo.PingTimeout == 0 {
		c.Mongo.PingTimeout = 5 * time.Second
	}
	if c.Mongo.TenantMaxPool == 0 {
		c.Mongo.TenantMaxPool = 10
	}
	if c.Tenancy.LookupCacheTTL == 0 {
		c.Tenancy.LookupCacheTTL = 30 * time.Second
	}
	if c.Tenancy.IdleTTL == 0 {
		c.Tenancy.IdleTTL = 30 * time.Minute
	}
	if c.Tenancy.MaxEntries == 0 {
		c.Tenancy.MaxEntries = 100
	}
	if c.Tenancy.EvictInterval == 0 {
		c.Tenancy.EvictInterval = 5 * time.Minute
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "modl_session"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 14 * 24 * time.Hour
	}
}
