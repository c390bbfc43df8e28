// Package metrics exports Prometheus instruments for turns, generation calls,
// structured calls, and the HTTP surface.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "boardroom"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal      *prometheus.CounterVec
	TurnDuration    *prometheus.HistogramVec
	TurnsInFlight   prometheus.Gauge
	FragmentsTotal  *prometheus.CounterVec
	GenerationTotal *prometheus.CounterVec
	GenerationTime  *prometheus.HistogramVec
	CallsTotal      *prometheus.CounterVec
	RoutingTotal    *prometheus.CounterVec
	VerdictsTotal   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	WSConnections   prometheus.Gauge
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "turns_total", Help: "Completed turns by mode and outcome",
		}, []string{"mode", "outcome"}),
		TurnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "turn_duration_seconds", Help: "Turn wall time by mode",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"mode"}),
		TurnsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "turns_in_flight", Help: "Turns currently running",
		}),
		FragmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fragments_relayed_total", Help: "Fragments relayed to clients by mode",
		}, []string{"mode"}),
		GenerationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "generation_calls_total", Help: "Generation backend calls by operation and outcome",
		}, []string{"provider", "op", "outcome"}),
		GenerationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "generation_call_duration_seconds", Help: "Generation backend call duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "op"}),
		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "structured_calls_total", Help: "Structured calls executed by name and outcome",
		}, []string{"name", "outcome"}),
		RoutingTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "routing_decisions_total", Help: "Routing decisions by path and persona",
		}, []string{"path", "persona"}),
		VerdictsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "verdicts_total", Help: "Gatekeeper verdicts recorded",
		}, []string{"verdict"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"method", "route"}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ws_connections_active", Help: "Open WebSocket connections",
		}),
	}
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.TurnsInFlight.Inc()
}

func (m *Metrics) TurnFinished(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsInFlight.Dec()
	m.TurnsTotal.WithLabelValues(mode, outcome).Inc()
	m.TurnDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) FragmentRelayed(mode string) {
	if m == nil {
		return
	}
	m.FragmentsTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordGeneration(provider, op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(provider, op, outcome(err)).Inc()
	m.GenerationTime.WithLabelValues(provider, op).Observe(d.Seconds())
}

func (m *Metrics) RecordCall(name string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.CallsTotal.WithLabelValues(name, result).Inc()
}

func (m *Metrics) RecordRouting(path, persona string) {
	if m == nil {
		return
	}
	m.RoutingTotal.WithLabelValues(path, persona).Inc()
}

func (m *Metrics) RecordVerdict(verdict string) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(verdict).Inc()
}

func (m *Metrics) WSOpened() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) WSClosed() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the recorder.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
