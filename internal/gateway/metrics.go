package gateway

import (
	"net/http"

	"github.com/briefgate/briefgate/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes protocol counters on a dedicated registry so tests can
// run multiple gateways without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated prometheus.Counter
	prompts         prometheus.Counter
	decisions       *prometheus.CounterVec
	agentErrors     prometheus.Counter
}

// NewMetrics builds the metric set. The active-session gauge reads straight
// from the store.
func NewMetrics(store *session.Store) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "briefgate_sessions_created_total",
			Help: "Sessions created since startup.",
		}),
		prompts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "briefgate_prompts_total",
			Help: "User prompts submitted.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "briefgate_decisions_total",
			Help: "Reviewer decision batches by outcome.",
		}, []string{"decision"}),
		agentErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "briefgate_agent_errors_total",
			Help: "Failed briefing agent calls.",
		}),
	}

	registry.MustRegister(
		m.sessionsCreated,
		m.prompts,
		m.decisions,
		m.agentErrors,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "briefgate_sessions_active",
			Help: "Currently live sessions.",
		}, func() float64 { return float64(store.Len()) }),
		collectors.NewGoCollector(),
	)

	return m
}

// SessionCreated records one new session.
func (m *Metrics) SessionCreated() { m.sessionsCreated.Inc() }

// PromptSubmitted records one user prompt.
func (m *Metrics) PromptSubmitted() { m.prompts.Inc() }

// DecisionSubmitted records one reviewer batch by outcome.
func (m *Metrics) DecisionSubmitted(decision string) {
	m.decisions.WithLabelValues(decision).Inc()
}

// AgentError records one failed backend call.
func (m *Metrics) AgentError() { m.agentErrors.Inc() }

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
