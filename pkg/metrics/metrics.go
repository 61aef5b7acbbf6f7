// Package metrics exposes the Prometheus counters/histograms spec
// §6/§9 asks for: request volume and success rate, per-stage latency,
// cache hit rate per layer, rate-limit denials per dimension, and LLM
// token usage. `github.com/prometheus/client_golang` is already a
// transitive dependency of the teacher's own go.mod (pulled in by its
// OpenTelemetry/otelhttp instrumentation stack); this package promotes
// it to a direct import rather than hand-rolling counters, the same
// promotion-over-fabrication approach taken for golang.org/x/sync in
// pkg/cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the orchestrator and its collaborators
// record against. A single instance is constructed at startup and
// threaded through via dependency injection, following the teacher's
// constructor-injection style rather than relying on the default global
// registry's package-level vars.
type Registry struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	RateLimitDenied *prometheus.CounterVec

	LLMTokensTotal *prometheus.CounterVec
	LLMCallLatency *prometheus.HistogramVec

	DegradedResponses *prometheus.CounterVec
}

// New registers every metric against reg and returns the bundle. Pass
// prometheus.DefaultRegisterer in production, since /metrics serves the
// default registry, and a fresh prometheus.NewRegistry() per test to
// avoid duplicate-registration panics across test runs.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbot",
			Name:      "requests_total",
			Help:      "Total chat requests processed, labeled by outcome.",
		}, []string{"outcome"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orderbot",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency by pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),

		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbot",
			Name:      "cache_hits_total",
			Help:      "Cache hits by layer (l1/l2/l3/l4).",
		}, []string{"layer"}),

		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbot",
			Name:      "cache_misses_total",
			Help:      "Cache misses by layer; a request that misses both L1 and L2 is counted as l1_l2.",
		}, []string{"layer"}),

		RateLimitDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbot",
			Name:      "rate_limit_denied_total",
			Help:      "Admission denials by limit dimension (spec §4.2).",
		}, []string{"limit_type"}),

		LLMTokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbot",
			Name:      "llm_tokens_total",
			Help:      "LLM token usage by direction (input/output) and purpose (intent/generation).",
		}, []string{"direction", "purpose"}),

		LLMCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orderbot",
			Name:      "llm_call_duration_seconds",
			Help:      "LLM provider call latency by purpose (intent/generation).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"purpose"}),

		DegradedResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbot",
			Name:      "degraded_responses_total",
			Help:      "Responses served with UpstreamDegraded set, by reason.",
		}, []string{"reason"}),
	}
}
