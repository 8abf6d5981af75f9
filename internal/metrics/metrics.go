package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tastetrail/backend/internal/logging"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastetrail_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tastetrail_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastetrail_cache_results_total",
			Help: "Cache lookups by outcome (hit, miss, error)",
		},
		[]string{"cache", "result"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastetrail_notifications_created_total",
			Help: "Persisted notifications by type",
		},
		[]string{"type"},
	)

	NotificationPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tastetrail_notification_publish_failures_total",
			Help: "Live push publishes that failed",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tastetrail_live_connections",
			Help: "Open live notification connections on this instance",
		},
	)

	LiveDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tastetrail_live_dropped_total",
			Help: "Live events dropped because a subscriber buffer was full",
		},
	)

	ModerationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastetrail_moderation_actions_total",
			Help: "Moderation actions recorded by kind",
		},
		[]string{"kind"},
	)

	ReportsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastetrail_reports_resolved_total",
			Help: "Reports closed by outcome",
		},
		[]string{"outcome"},
	)

	EffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastetrail_effect_failures_total",
			Help: "Best-effort side effects that failed",
		},
		[]string{"effect"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastetrail_upstream_requests_total",
			Help: "Calls to third-party services by outcome",
		},
		[]string{"upstream", "result"},
	)
)

// HTTPMiddleware records request counts and latency labelled by chi route
// pattern. Register it inside the router so the pattern is resolved.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &logging.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		APIRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.Status)).Inc()
		APIRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
