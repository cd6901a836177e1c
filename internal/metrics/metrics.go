// Package metrics holds the Prometheus collectors shared by the ingestion,
// summary and HTTP layers, and exposes them on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "txsummary"

var (
	// IngestRows counts rows committed to the store.
	IngestRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_rows_total",
		Help:      "Rows committed to the transaction store.",
	})

	// IngestBatches counts ingest calls by outcome (ok, invalid_input, internal).
	IngestBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_batches_total",
		Help:      "Ingest calls by outcome.",
	}, []string{"outcome"})

	// IngestDuration observes wall time of whole ingest calls.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "Duration of ingest calls, parse and load included.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
	})

	// Summaries counts summary queries by outcome (ok, invalid_input, not_found, internal).
	Summaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summary_queries_total",
		Help:      "Summary queries by outcome.",
	}, []string{"outcome"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler returns the Prometheus exposition endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per matched route.
// Unmatched routes are reported as "unmatched" to keep label cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
