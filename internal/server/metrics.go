package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	loads      *prometheus.CounterVec
	recomputes *prometheus.CounterVec
	sessions   prometheus.Gauge
}

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datasift",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "datasift",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datasift",
			Name:      "dataset_loads_total",
			Help:      "Dataset loads by result (loaded, cached, failed).",
		}, []string{"result"}),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datasift",
			Name:      "recomputations_total",
			Help:      "Filter recomputations by endpoint.",
		}, []string{"endpoint"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datasift",
			Name:      "sessions",
			Help:      "Datasets currently held in memory.",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.loads, m.recomputes, m.sessions,
		collectors.NewGoCollector())
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) observeLoad(result string) { m.loads.WithLabelValues(result).Inc() }

func (m *Metrics) observeRecompute(endpoint string) { m.recomputes.WithLabelValues(endpoint).Inc() }
