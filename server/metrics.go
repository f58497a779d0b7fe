package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spuro",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spuro",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	entitiesLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spuro",
		Name:      "entities_live",
		Help:      "Entities currently visible to readers.",
	})

	entitiesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spuro",
		Name:      "entities_swept_total",
		Help:      "Entities reclaimed by the expiry sweeper.",
	})

	eventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spuro",
		Name:      "event_subscribers",
		Help:      "Connected WebSocket event subscribers.",
	})
)

// recordRequest updates the request counter and latency histogram. The
// route label is the mux pattern, not the raw path, to keep label
// cardinality bounded.
func recordRequest(method, route string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordSwept feeds the sweep counter from the background sweeper, which
// lives outside this package.
func RecordSwept(reclaimed int) {
	if reclaimed > 0 {
		entitiesSwept.Add(float64(reclaimed))
	}
}

func (s *SpuroServer) metricsHandler() http.Handler {
	return promhttp.Handler()
}
