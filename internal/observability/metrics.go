package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helios-portal/helios-portal/internal/groupsync"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	syncRuns        *prometheus.CounterVec
	syncUpdated     prometheus.Gauge
	syncDuration    prometheus.Histogram
}

// NewMetrics initializes the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helios_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helios_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helios_group_sync_runs_total",
		Help: "Group rank sync runs by outcome.",
	}, []string{"outcome"})
	syncUpdated := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "helios_group_sync_updated_users",
		Help: "Users updated by the most recent group rank sync run.",
	})
	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "helios_group_sync_duration_seconds",
		Help:    "Group rank sync run duration.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	registry.MustRegister(requests, duration, syncRuns, syncUpdated, syncDuration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		syncRuns:        syncRuns,
		syncUpdated:     syncUpdated,
		syncDuration:    syncDuration,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSyncRun records the outcome of one reconciliation run.
func (m *Metrics) ObserveSyncRun(result *groupsync.Result) {
	if m == nil || result == nil {
		return
	}
	outcome := "ok"
	if result.FailedUsers > 0 {
		outcome = "partial"
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncUpdated.Set(float64(result.UpdatedUsers))
	m.syncDuration.Observe(float64(result.DurationMs) / 1000)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
