// internal/config/loader_test.go
//
// Unit-tests for the three-layer config overlay.
//
// Context
// -------
// The loader promises that a `MODL_`-prefixed environment variable beats
// the YAML file, with `__` mapping to a dot in the key path.  These tests
// run against a throwaway root (MODL_ROOT + t.TempDir) so they never read
// the repo's own conf/ directory.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `http:
  listen_addr: ":8080"
mongo:
  registry_uri: "mongodb://localhost:27017"
tenancy:
  domain_suffix: "modl.gg"
  lookup_cache_ttl: 45s
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	confDir := filepath.Join(root, "conf")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "global.yaml"), []byte(testYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoad_EnvOverrideBeatsYAML(t *testing.T) {
	root := writeTestConfig(t)
	t.Setenv("MODL_ROOT", root)
	t.Setenv("MODL_TENANCY__DOMAIN_SUFFIX", "override.example")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Tenancy.DomainSuffix != "override.example" {
		t.Fatalf("domain_suffix = %q, want the env override to win", cfg.Tenancy.DomainSuffix)
	}
	// Keys without an override keep their YAML values.
	if cfg.HTTP.ListenAddr != ":8080" {
		t.Fatalf("listen_addr = %q, want YAML value", cfg.HTTP.ListenAddr)
	}
	if cfg.Tenancy.LookupCacheTTL != 45*time.Second {
		t.Fatalf("lookup_cache_ttl = %v, want YAML value", cfg.Tenancy.LookupCacheTTL)
	}
}

func TestLoad_DefaultsFillOmittedKeys(t *testing.T) {
	root := writeTestConfig(t)
	t.Setenv("MODL_ROOT", root)

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mongo.RegistryDB != "modl_global" {
		t.Fatalf("registry_db = %q, want default", cfg.Mongo.RegistryDB)
	}
	if cfg.Session.CookieName != "modl_session" {
		t.Fatalf("cookie_name = %q, want default", cfg.Session.CookieName)
	}
	if cfg.Tenancy.IdleTTL != 30*time.Minute {
		t.Fatalf("idle_ttl = %v, want default", cfg.Tenancy.IdleTTL)
	}
	if cfg.Paths.Root != root {
		t.Fatalf("root = %q, want %q", cfg.Paths.Root, root)
	}
}

func TestLoad_VaultRefWithoutClientFails(t *testing.T) {
	root := t.TempDir()
	confDir := filepath.Join(root, "conf")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `http:
  listen_addr: ":8080"
mongo:
  registry_uri: "vault:secret/data/modl/mongo#uri"
tenancy:
  domain_suffix: "modl.gg"
`
	if err := os.WriteFile(filepath.Join(confDir, "global.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MODL_ROOT", root)

	if _, err := Load(context.Background(), nil); err == nil {
		t.Fatal("vault reference with nil client must fail loudly")
	}
}
