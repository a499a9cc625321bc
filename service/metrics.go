package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. Each engine owns its
// own registry so embedding applications can expose or ignore it.
type Metrics struct {
	registry *prometheus.Registry

	IngestTotal     *prometheus.CounterVec
	ContextBuilds   *prometheus.CounterVec
	JobRuns         *prometheus.CounterVec
	AIFallbacks     prometheus.Counter
	DegradedIngests prometheus.Counter
	SurpriseScores  prometheus.Histogram
	ContextTokens   prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindscape",
			Name:      "ingest_total",
			Help:      "Memories ingested, by tenant.",
		}, []string{"tenant"}),
		ContextBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindscape",
			Name:      "context_builds_total",
			Help:      "Optimized context assemblies, by tenant.",
		}, []string{"tenant"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindscape",
			Name:      "job_runs_total",
			Help:      "Background job executions, by type and outcome.",
		}, []string{"type", "status"}),
		AIFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindscape",
			Name:      "ai_fallbacks_total",
			Help:      "Operations that degraded to a deterministic fallback.",
		}),
		DegradedIngests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindscape",
			Name:      "degraded_ingests_total",
			Help:      "Ingests that completed with at least one degraded step.",
		}),
		SurpriseScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mindscape",
			Name:      "surprise_score",
			Help:      "Distribution of final surprise scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ContextTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mindscape",
			Name:      "context_tokens",
			Help:      "Tokens served per assembled context.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		}),
	}
	reg.MustRegister(m.IngestTotal, m.ContextBuilds, m.JobRuns,
		m.AIFallbacks, m.DegradedIngests, m.SurpriseScores, m.ContextTokens)
	return m
}

// Registry exposes the collectors for an HTTP handler or push gateway.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsSnapshot is the point-in-time store census returned by GetMetrics.
type MetricsSnapshot struct {
	Tenant               string `json:"tenant"`
	MemoryCount          int    `json:"memory_count"`
	AdaptiveCount        int    `json:"adaptive_count"`
	BeliefCount          int    `json:"belief_count"`
	ContradictionCount   int    `json:"contradiction_count"`
	ActiveContradictions int    `json:"active_contradictions"`
	AuditEvents          int    `json:"audit_events"`
	TakenAt              int64  `json:"taken_at"`
}
