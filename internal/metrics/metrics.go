// Package metrics exposes Prometheus collectors for the gateway. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "promptbuilder"

type Metrics struct {
	reg *prometheus.Registry

	llmCalls    *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
	saves       *prometheus.CounterVec
	httpReqs    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
	sessions    prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		llmCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_calls_total",
			Help: "Model calls by model, phase and result.",
		}, []string{"model", "phase", "result"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_call_seconds",
			Help:    "Model call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"model", "phase"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ai_outcomes_total",
			Help: "Refine and analyze outcomes (primary, fallback, failed, rejected).",
		}, []string{"op", "outcome"}),
		saves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "taxonomy_saves_total",
			Help: "Wholesale taxonomy saves by result.",
		}, []string{"result"}),
		httpReqs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "compose_sessions",
			Help: "Live compose sessions.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveLLMCall(model, phase string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, phase, result(err)).Inc()
	m.llmLatency.WithLabelValues(model, phase).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOutcome(op, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveSave(err error) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpReqs.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
