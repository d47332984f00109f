package httpapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-facing Prometheus collectors.
type Metrics struct {
	requestsTotal  *prometheus.CounterVec
	requestDur     *prometheus.HistogramVec
	activeRequests prometheus.Gauge
	askConfidence  prometheus.Histogram
	askRefusals    prometheus.Counter
}

// NewMetrics registers the collectors on reg. Pass a fresh registry in
// tests to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "answerd_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "answerd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method and route.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "answerd_http_active_requests",
			Help: "Number of in-flight HTTP requests.",
		}),
		askConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "answerd_ask_confidence",
			Help:    "Confidence scores of returned answers.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		askRefusals: factory.NewCounter(prometheus.CounterOpts{
			Name: "answerd_ask_refusals_total",
			Help: "Questions refused because no excerpt cleared the similarity floor.",
		}),
	}
}

// Middleware records request count, duration and in-flight gauge. Routes
// are labeled by the registered pattern, not the raw path, to keep
// cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.activeRequests.Inc()

			err := next(c)

			m.activeRequests.Dec()
			route := c.Path()
			if route == "" {
				route = "/"
			}
			method := c.Request().Method
			m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.requestDur.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// ObserveAnswer records per-answer signals.
func (m *Metrics) ObserveAnswer(confidence float64, refused bool) {
	m.askConfidence.Observe(confidence)
	if refused {
		m.askRefusals.Inc()
	}
}
