package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "zkvault"

// Buckets for request latency in milliseconds.
var bucketHTTPReqs = []float64{
	1, 2, 5, 10, 20, 30, 50, 75, 100,
	150, 200, 300, 400, 500, 750, 1000,
	1500, 2000, 3000, 5000, 10000,
}

// Metrics holds the HTTP collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rejected *prometheus.CounterVec
}

// NewMetrics creates and registers the HTTP collectors plus the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	labels := []string{"path", "code", "method"}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "api_request_count",
			Help:      "HTTP requests by route, status and method.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "api_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   bucketHTTPReqs,
		}, labels),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "api_error_count",
			Help:      "Error responses by error code.",
		}, []string{"error_code"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records every request under its route template, so path
// parameters do not create new series. Unmatched routes share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{
			"path":   path,
			"code":   strconv.Itoa(c.Writer.Status()),
			"method": c.Request.Method,
		}
		m.requests.With(labels).Inc()
		m.duration.With(labels).Observe(float64(time.Since(start).Milliseconds()))

		if code, ok := c.Get(CtxErrorCode); ok {
			if s, ok := code.(string); ok && s != "" {
				m.rejected.WithLabelValues(s).Inc()
			}
		}
	}
}
