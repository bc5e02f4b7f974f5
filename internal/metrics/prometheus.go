// Package metrics provides Prometheus metrics for the relay service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhengjr9/gemini-relay/internal/relay"
)

// Manager owns the relay's collectors and the registry they are exposed from.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	goCollectors     bool
	registry         *prometheus.Registry

	asks        *prometheus.CounterVec
	askDuration *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a Manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gemini",
		subsystem:        "relay",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	m.asks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "asks_total",
		Help:      "Ask calls by outcome.",
	}, []string{"outcome"})

	m.askDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ask_duration_seconds",
		Help:      "Ask call latency including the upstream round trip.",
		Buckets:   m.histogramBuckets,
	}, []string{"outcome"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   m.histogramBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(m.asks, m.askDuration, m.httpRequests, m.httpRequestDuration)
	if m.goCollectors {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// Outcome series exist from startup, at zero.
	for _, o := range []relay.Outcome{
		relay.OutcomeSucceeded,
		relay.OutcomeUpstreamFailed,
		relay.OutcomeExtractionFailed,
		relay.OutcomeTransportFailed,
	} {
		m.asks.WithLabelValues(string(o))
	}
}

// ObserveAsk implements relay.Recorder.
func (m *Manager) ObserveAsk(outcome relay.Outcome, duration time.Duration) {
	m.asks.WithLabelValues(string(outcome)).Inc()
	m.askDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

// ObserveHTTP records one served HTTP request.
func (m *Manager) ObserveHTTP(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
