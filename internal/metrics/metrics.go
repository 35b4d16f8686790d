// Package metrics exposes the agent's Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/llm"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	Replies            *prometheus.CounterVec
	Escalations        *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	Learned            *prometheus.CounterVec
	StrategyVersion    prometheus.Gauge
	LinkTiming         prometheus.Gauge
	ConversionRate     prometheus.Gauge
	ActiveSessions     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Replies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "closer_replies_total",
				Help: "Agent replies by source (pattern, generated, fallback)",
			},
			[]string{"source"},
		),
		Escalations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "closer_escalations_total",
				Help: "Consultation offers appended to replies",
			},
			[]string{"reason"},
		),
		GenerationFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "closer_generation_failures_total",
				Help: "Failed generation calls by error kind",
			},
			[]string{"kind"},
		),
		Learned: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "closer_conversations_learned_total",
				Help: "Conversations folded into the strategy by outcome",
			},
			[]string{"outcome"},
		),
		StrategyVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "closer_strategy_version",
			Help: "Current strategy record version",
		}),
		LinkTiming: f.NewGauge(prometheus.GaugeOpts{
			Name: "closer_link_timing",
			Help: "Exchange at which a consultation is offered",
		}),
		ConversionRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "closer_conversion_rate",
			Help: "Percentage of completed conversations that shared a link",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "closer_active_sessions",
			Help: "Open conversations",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Reply(source string) {
	m.Replies.WithLabelValues(source).Inc()
}

func (m *Metrics) Escalation(early bool) {
	reason := "timing"
	if early {
		reason = "early"
	}
	m.Escalations.WithLabelValues(reason).Inc()
}

func (m *Metrics) GenerationFailure(kind llm.ErrorKind) {
	m.GenerationFailures.WithLabelValues(string(kind)).Inc()
}

// ConversationLearned records one merge and the resulting strategy.
func (m *Metrics) ConversationLearned(f analyzer.Features, rec *strategy.Record) {
	outcome := "failed"
	if f.LinkShared {
		outcome = "success"
	}
	m.Learned.WithLabelValues(outcome).Inc()
	m.StrategyObserved(rec)
}

// StrategyObserved updates the strategy gauges.
func (m *Metrics) StrategyObserved(rec *strategy.Record) {
	if rec == nil {
		return
	}
	m.StrategyVersion.Set(float64(rec.Version))
	m.LinkTiming.Set(float64(rec.EffectiveLinkTiming()))
	m.ConversionRate.Set(rec.Metrics.ConversionRate)
}

func (m *Metrics) SessionsActive(n int) {
	m.ActiveSessions.Set(float64(n))
}
