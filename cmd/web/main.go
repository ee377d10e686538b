// cmd/web/main.go
//
// modl panel – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Connect Vault when VAULT_ADDR is set; load and validate config.
//
//  4. Open the Global Registry connection and log active-server count.
//
//  5. Build the tenant pool (lazy per-tenant connections, model registrar
//     hooks) and the host resolver in front of it.
//
//  6. Assemble the chi router: platform paths (health, metrics, status
//     poll) bypass tenant enforcement; everything else passes resolver →
//     request-info → session gate before reaching panel routes.
//
//  7. Serve with hardened timeouts; on SIGINT/SIGTERM drain in-flight
//     requests, then the tenant pool, then the registry connection.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modl-gg/panel/internal/auth"
	"github.com/modl-gg/panel/internal/config"
	"github.com/modl-gg/panel/internal/database"
	"github.com/modl-gg/panel/internal/logger"
	"github.com/modl-gg/panel/internal/middleware"
	"github.com/modl-gg/panel/internal/models"
	"github.com/modl-gg/panel/internal/registry"
	"github.com/modl-gg/panel/internal/requestinfo"
	"github.com/modl-gg/panel/internal/server"
	"github.com/modl-gg/panel/internal/session"
	"github.com/modl-gg/panel/internal/tenant"
	"github.com/modl-gg/panel/internal/vault"
)

const serverEnvPath = "/usr/local/etc/modl-panel/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	//
	// ── 1.  Vault (optional) + config ───────────────────────────────────
	//
	var vc *vault.Client
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err = vault.New(ctx, logOut.Infow)
		if err != nil {
			logOut.Fatalw("vault connect", "err", err)
		}
	}

	cfg, err := config.Load(ctx, vc)
	if err != nil {
		logOut.Fatalw("load config", "err", err)
	}

	//
	// ── 2.  Global Registry connect ─────────────────────────────────────
	//
	logOut.Infow("connecting to registry", "db", cfg.Mongo.RegistryDB)
	regClient, err := database.ConnectWithOptions(ctx, cfg.Mongo.RegistryURI,
		database.Options{
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
			PingTimeout:    cfg.Mongo.PingTimeout,
			AppName:        "modl-panel",
		})
	if err != nil {
		logOut.Fatalw("connect registry", "err", err)
	}
	reg := registry.New(regClient, cfg.Mongo.RegistryDB)
	if err := reg.EnsureIndexes(ctx); err != nil {
		logOut.Fatalw("registry indexes", "err", err)
	}
	logOut.Infow("registry online")

	//
	// ── 3.  Tenant pool + resolver ──────────────────────────────────────
	//
	registrar := models.NewRegistrar()

	// Every tenant database lives on the same cluster as the registry; the
	// factory reuses the registry URI and selects the database by name.
	factory := func(fctx context.Context, dbName string) (tenant.Handle, error) {
		cli, err := database.ConnectWithOptions(fctx, cfg.Mongo.RegistryURI,
			database.Options{
				MaxPoolSize:    cfg.Mongo.TenantMaxPool,
				MinPoolSize:    cfg.Mongo.TenantMinPool,
				ConnectTimeout: cfg.Mongo.ConnectTimeout,
				PingTimeout:    cfg.Mongo.PingTimeout,
				AppName:        "modl-panel/" + dbName,
			})
		if err != nil {
			return nil, err
		}
		return cli, nil
	}

	pool := tenant.NewPool(factory, tenant.Options{
		IdleTTL:        cfg.Tenancy.IdleTTL,
		EvictInterval:  cfg.Tenancy.EvictInterval,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		MaxEntries:     cfg.Tenancy.MaxEntries,
		OnCreate: func(cctx context.Context, c *tenant.Conn) error {
			return registrar.EnsureAll(cctx, c)
		},
		OnEvict: func(c *tenant.Conn) { registrar.Release(c) },
	})

	resolver := tenant.NewResolver(reg, pool, tenant.ResolverOptions{
		DomainSuffix:   cfg.Tenancy.DomainSuffix,
		LookupTTL:      cfg.Tenancy.LookupCacheTTL,
		BypassPrefixes: cfg.Tenancy.BypassPrefixes,
	})

	sessions := session.NewStore(registrar, session.Options{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	})

	//
	// ── 4.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(middleware.Security)

	// Platform paths: reachable regardless of tenant resolution.  They must
	// also appear in tenancy.bypass_prefixes so the resolver skips them.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/public/status", resolver.StatusHandler)

	// Tenant-scoped paths: resolver → request-info → session gate.
	r.Group(func(g chi.Router) {
		g.Use(resolver.Middleware)
		g.Use(requestinfo.Enrich)
		g.Use(sessions.Middleware)
		mountPanel(g, sessions)
	})

	var handler http.Handler = r
	if cfg.HTTP.ForceHTTPS {
		handler = middleware.ForceHTTPS(resolver, handler)
	}

	//
	// ── 5.  Serve + graceful shutdown ───────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, handler)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)

	select {
	case err := <-errCh:
		logOut.Fatalw("http server", "err", err)
	case <-ctx.Done():
	}

	logOut.Infow("shutting down")
	shCtx, shCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shCancel()

	if err := srv.Shutdown(shCtx); err != nil {
		logOut.Warnw("server shutdown", "err", err)
	}
	if err := pool.Shutdown(shCtx); err != nil {
		logOut.Warnw("pool shutdown", "err", err)
	}
	if err := regClient.Disconnect(shCtx); err != nil {
		logOut.Warnw("registry disconnect", "err", err)
	}
	logOut.Infow("bye")
}

// mountPanel attaches the tenant-scoped panel API.  Every handler here can
// assume a resolved tenant; the resolver middleware guarantees it.
func mountPanel(g chi.Router, sessions *session.Store) {
	g.Route("/api/panel", func(p chi.Router) {
		// Connectivity probe against the tenant's own database.
		p.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			res := tenant.FromContext(r.Context())
			pctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := res.Conn.Handle().Ping(pctx); err != nil {
				http.Error(w, "degraded", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		// Who am I: any authenticated staff role.
		p.Group(func(a chi.Router) {
			a.Use(auth.RequireAtLeast(auth.RoleHelper))
			a.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				ident, _ := auth.IdentityFrom(r.Context())
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				_ = json.NewEncoder(w).Encode(map[string]string{
					"username": ident.Username,
					"email":    ident.Email,
					"role":     string(ident.Role),
				})
			})
			a.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
				res := tenant.FromContext(r.Context())
				if err := sessions.Destroy(r.Context(), res.Conn, w, r); err != nil {
					http.Error(w, "logout failed", http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})
}
