package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	relationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cast_relation_transitions_total",
			Help: "Cast membership transitions by operation and result.",
		},
		[]string{"operation", "result"},
	)

	castingWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casting_writes_total",
			Help: "Casting creates and updates by result.",
		},
		[]string{"operation", "result"},
	)
)

// Register adds the service collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, relationTransitions, castingWrites)
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTransition counts one membership transition.
func ObserveTransition(operation, result string) {
	relationTransitions.WithLabelValues(operation, result).Inc()
}

// ObserveCastingWrite counts one casting create or update.
func ObserveCastingWrite(operation, result string) {
	castingWrites.WithLabelValues(operation, result).Inc()
}

// Middleware records request count, latency and in-flight requests per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInFlight.Inc()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpInFlight.Dec()
	}
}
