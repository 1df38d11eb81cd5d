package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Quota metrics
	QuotaIncrementsTotal *prometheus.CounterVec

	// Lifecycle metrics
	LifecycleUsersTotal  *prometheus.CounterVec
	LifecycleRunDuration *prometheus.HistogramVec
	DemoUsers            *prometheus.GaugeVec

	// Export and notification metrics
	ExportsTotal       *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evalhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evalhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		QuotaIncrementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evalhub_quota_increments_total",
				Help: "Report counter increments by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		LifecycleUsersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evalhub_lifecycle_users_total",
				Help: "Demo users handled by lifecycle jobs by action",
			},
			[]string{"action"},
		),
		LifecycleRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evalhub_lifecycle_run_duration_seconds",
				Help:    "Lifecycle job duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
			},
			[]string{"job", "dry_run"},
		),
		DemoUsers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "evalhub_demo_users",
				Help: "Demo users by lifecycle state at the last stats read",
			},
			[]string{"state"},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evalhub_exports_total",
				Help: "User data snapshots by sink and status",
			},
			[]string{"sink", "status"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evalhub_notifications_total",
				Help: "Expiration warnings sent by status",
			},
			[]string{"status"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "evalhub_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "evalhub_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "evalhub_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QuotaIncrementsTotal,
		m.LifecycleUsersTotal,
		m.LifecycleRunDuration,
		m.DemoUsers,
		m.ExportsTotal,
		m.NotificationsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// RecordQuotaIncrement counts one increment attempt
func (m *Metrics) RecordQuotaIncrement(role, outcome string) {
	if m == nil {
		return
	}
	m.QuotaIncrementsTotal.WithLabelValues(role, outcome).Inc()
}

// RecordLifecycleUsers adds n users to the action counter
func (m *Metrics) RecordLifecycleUsers(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LifecycleUsersTotal.WithLabelValues(action).Add(float64(n))
}

// ObserveRun records the duration of a lifecycle job
func (m *Metrics) ObserveRun(job string, dryRun bool, d time.Duration) {
	if m == nil {
		return
	}
	m.LifecycleRunDuration.WithLabelValues(job, strconv.FormatBool(dryRun)).Observe(d.Seconds())
}

// SetDemoUsers sets the gauge for a lifecycle state
func (m *Metrics) SetDemoUsers(state string, n int) {
	if m == nil {
		return
	}
	m.DemoUsers.WithLabelValues(state).Set(float64(n))
}

// RecordExport counts one snapshot write
func (m *Metrics) RecordExport(sink, status string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(sink, status).Inc()
}

// RecordNotification counts one notification attempt
func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

// RecordDBStats copies connection pool statistics into the gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests. Paths are labelled with the
// matched mux route template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
