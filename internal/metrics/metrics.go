package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Read-through cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Read-through cache misses",
		},
		[]string{"backend"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_invalidations_total",
			Help: "Tag invalidations issued",
		},
		[]string{"tag"},
	)

	// Catalog queries
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Duration of uncached catalog queries by listing shape",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"shape"},
	)

	DatastoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_datastore_errors_total",
			Help: "Datastore failures degraded to empty results",
		},
		[]string{"operation"},
	)

	// Mutation pipeline
	PipelineRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_pipeline_rollbacks_total",
			Help: "Compensating rollbacks by failed step",
		},
		[]string{"step", "outcome"},
	)

	SoftFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_pipeline_soft_failures_total",
			Help: "Side-channel writes that failed without aborting the mutation",
		},
		[]string{"step"},
	)

	// Activity
	LeadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_leads_created_total",
			Help: "Leads captured by type",
		},
		[]string{"tipo"},
	)

	ViewsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_views_recorded_total",
			Help: "Property views recorded",
		},
	)

	SearchSyncProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_search_sync_total",
			Help: "Search index sync jobs by outcome",
		},
		[]string{"action", "outcome"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_api_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_api_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordQuery observes one uncached catalog query
func RecordQuery(shape string, duration time.Duration, err error) {
	QueryDuration.WithLabelValues(shape).Observe(duration.Seconds())
	if err != nil {
		DatastoreErrors.WithLabelValues(shape).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records request count and latency per matched route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
