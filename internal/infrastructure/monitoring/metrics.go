package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection. Each collector
// owns its registry.
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	// Business metrics
	recommendationsTotal   *prometheus.CounterVec
	recommendationDuration *prometheus.HistogramVec
	chatTurnsTotal         *prometheus.CounterVec
	farmersRegisteredTotal prometheus.Counter

	// Provider breaker
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger,
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		httpInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Requests currently being served",
			},
		),

		recommendationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendations_total",
				Help: "Recommendations served, by kind and source (provider or fallback)",
			},
			[]string{"kind", "source"},
		),
		recommendationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recommendation_duration_seconds",
				Help:    "Time to produce a recommendation",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"kind"},
		),
		chatTurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_turns_total",
				Help: "Chat turns handled, by outcome",
			},
			[]string{"outcome"},
		),
		farmersRegisteredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "farmers_registered_total",
				Help: "Total number of farmers registered",
			},
		),

		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "provider_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		breakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_circuit_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
	}
}

// HTTPMiddleware records request counts and latency by chi route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordRecommendation records a served recommendation
func (m *MetricsCollector) RecordRecommendation(kind, source string, duration time.Duration) {
	m.recommendationsTotal.WithLabelValues(kind, source).Inc()
	m.recommendationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordChatTurn records a chat turn outcome
func (m *MetricsCollector) RecordChatTurn(outcome string) {
	m.chatTurnsTotal.WithLabelValues(outcome).Inc()
}

// FarmerRegistered counts a signup
func (m *MetricsCollector) FarmerRegistered() {
	m.farmersRegisteredTotal.Inc()
}

// BreakerStateChanged tracks provider circuit breaker transitions
func (m *MetricsCollector) BreakerStateChanged(name, from, to string) {
	m.breakerTransitions.WithLabelValues(name, from, to).Inc()
	m.breakerState.WithLabelValues(name).Set(stateValue(to))
}

// Handler returns the /metrics handler for this collector's registry
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func stateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
