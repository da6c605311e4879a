package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geoviewer",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geoviewer",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Viewer metrics
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "geoviewer",
		Subsystem: "viewer",
		Name:      "active_sessions",
		Help:      "Current number of live viewer sessions",
	}, []string{"kind"})

	ViewportTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "viewer",
		Name:      "viewport_transitions_total",
		Help:      "Viewport controller lifecycle transitions",
	}, []string{"to"})

	QueuedOpsReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "viewer",
		Name:      "queued_ops_replayed_total",
		Help:      "Operations queued while loading and replayed once ready",
	})

	LayerUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "viewer",
		Name:      "layer_upserts_total",
		Help:      "Layer upserts by outcome (create or update)",
	}, []string{"mode"})

	SyncApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "sync",
		Name:      "applied_total",
		Help:      "Camera states mirrored onto a partner pane",
	})

	SyncSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "sync",
		Name:      "suppressed_total",
		Help:      "Camera changes not re-broadcast because they came from a sync",
	})

	SyncCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "sync",
		Name:      "coalesced_total",
		Help:      "Intermediate camera states replaced by a newer one before being applied",
	})

	TileFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "tiles",
		Name:      "fetches_total",
		Help:      "Base tile fetches by result",
	}, []string{"result"})

	PreviewFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geoviewer",
		Subsystem: "analysis",
		Name:      "preview_fetch_duration_seconds",
		Help:      "Duration of preview fetches from the analysis service",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoviewer",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoviewer",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoviewer",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoviewer",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoviewer",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics sets the database pool gauges.
func UpdateDBPoolMetrics(acquired, idle, total int32) {
	DBPoolConnsAcquired.Set(float64(acquired))
	DBPoolConnsIdle.Set(float64(idle))
	DBPoolConnsOpen.Set(float64(total))
}
