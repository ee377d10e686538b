// Package metrics holds Prometheus instruments that are used across the
// panel.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTenants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tenant_connections",
			Help: "Number of tenant database connections currently pooled.",
		})

	TenantConnectTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_connect_total",
			Help: "Cumulative number of tenant connections successfully opened.",
		})

	TenantConnectErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_connect_errors_total",
			Help: "Cumulative number of tenant connection failures.",
		})

	TenantEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_evict_total",
			Help: "Cumulative number of tenant connections evicted from the pool.",
		})

	ResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolve_total",
			Help: "Request resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	LookupCacheHitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_lookup_cache_hit_total",
			Help: "Registry lookups served from the resolver cache.",
		})
)

func init() {
	prometheus.MustRegister(
		ActiveTenants,
		TenantConnectTotal,
		TenantConnectErrorsTotal,
		TenantEvictTotal,
		ResolveTotal,
		LookupCacheHitTotal,
	)
}
