package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Catalog
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Upstream catalog API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Upstream catalog API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Cache evictions (capacity or expiry) by cache name",
		},
		[]string{"cache"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Favorites
	FavoriteTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorite_toggles_total",
			Help: "Favorite toggles by resulting action",
		},
		[]string{"action"},
	)

	MetadataSyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_metadata_sync_failures_total",
			Help: "Failed writes to the identity provider metadata by operation",
		},
		[]string{"operation"},
	)

	UsersProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_provisioned_total",
			Help: "User records created by provisioning path",
		},
		[]string{"path"},
	)

	// Webhooks
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Identity webhook events by type and result",
		},
		[]string{"type", "result"},
	)

	// Health
	DatabaseUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_up",
			Help: "Whether the last database ping succeeded (1) or failed (0)",
		},
	)
)
