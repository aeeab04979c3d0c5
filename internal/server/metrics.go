package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "activity"
	metricsSubsystem = "server"
)

// Metrics holds the Prometheus collectors of the server.
type Metrics struct {
	// RequestsTotal counts HTTP requests by method, route and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes HTTP latency by method and route.
	RequestDuration *prometheus.HistogramVec

	// LoadsTotal counts session loads by kind (full, merge) and result (ok, error, stale).
	LoadsTotal *prometheus.CounterVec

	// LoadDuration observes how long fetching a session took.
	LoadDuration *prometheus.HistogramVec

	SessionsActive prometheus.Gauge
	StreamClients  prometheus.Gauge

	// EventEditsTotal counts event creations and deletions.
	EventEditsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "loads_total",
				Help:      "Total session loads by kind and result",
			},
			[]string{"kind", "result"},
		),
		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "load_duration_seconds",
				Help:      "Time spent fetching history for a session",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"kind"},
		),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sessions_active",
			Help:      "Number of open graph sessions",
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "stream_clients",
			Help:      "Number of connected snapshot streams",
		}),
		EventEditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "event_edits_total",
				Help:      "Total event edits by operation",
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) observeLoad(kind string, err error, applied bool, d time.Duration) {
	result := "ok"
	switch {
	case !applied:
		result = "stale"
	case err != nil:
		result = "error"
	}
	m.LoadsTotal.WithLabelValues(kind, result).Inc()
	m.LoadDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// middleware records request counts and latency per route.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
