package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthEventsTotal     *prometheus.CounterVec
	FileOperationsTotal *prometheus.CounterVec
	StorageDriftTotal   prometheus.Counter

	SweepRemovedTotal prometheus.Counter
	SweepWarnedTotal  prometheus.Counter
	SweepFailedTotal  *prometheus.CounterVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filevault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_auth_events_total",
				Help: "Authentication events by kind and outcome",
			},
			[]string{"event", "outcome"},
		),
		FileOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_file_operations_total",
				Help: "Per-file operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),
		StorageDriftTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filevault_storage_drift_total",
			Help: "Objects written without metadata after a failed compensation",
		}),
		SweepRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filevault_sweep_removed_users_total",
			Help: "Inactive users removed by the sweep",
		}),
		SweepWarnedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filevault_sweep_warned_users_total",
			Help: "Inactive users sent a retention warning",
		}),
		SweepFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_sweep_failures_total",
				Help: "Per-user sweep failures by pass",
			},
			[]string{"pass"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.FileOperationsTotal,
		m.StorageDriftTotal,
		m.SweepRemovedTotal,
		m.SweepWarnedTotal,
		m.SweepFailedTotal,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// AuthEvent counts one register, login, refresh, verify or logout attempt.
func (m *Metrics) AuthEvent(event string, err error) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event, outcome(err)).Inc()
}

// FileOperation counts one per-file upload, update, download or delete.
func (m *Metrics) FileOperation(op string, err error) {
	if m == nil {
		return
	}
	m.FileOperationsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) StorageDrift() {
	if m == nil {
		return
	}
	m.StorageDriftTotal.Inc()
}

func (m *Metrics) SweepRemoved() {
	if m == nil {
		return
	}
	m.SweepRemovedTotal.Inc()
}

func (m *Metrics) SweepWarned() {
	if m == nil {
		return
	}
	m.SweepWarnedTotal.Inc()
}

func (m *Metrics) SweepFailed(pass string) {
	if m == nil {
		return
	}
	m.SweepFailedTotal.WithLabelValues(pass).Inc()
}

// Middleware records request count and latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// Render now so the recorded status is the one sent.
				c.Error(err)
			}

			status := c.Response().Status
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
