package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles swarmweave's own prometheus.Registry with the fixed set
// of counters/gauges the coordinator and workers publish to it, so a
// process doesn't pull in whatever else happens to be registered against
// the global default registry.
type Registry struct {
	registry *prometheus.Registry

	CommandsSent     *prometheus.CounterVec
	CommandsReceived *prometheus.CounterVec
	CommandErrors    *prometheus.CounterVec

	InferenceRequests *prometheus.CounterVec
	InferenceFailures *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec

	ActiveRequests         prometheus.Gauge
	DiscoveryCompleteness  prometheus.Gauge
	StrategyFallbacksTotal *prometheus.CounterVec
}

// New constructs a Registry with every metric registered and ready to
// observe.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmweave_commands_sent_total",
			Help: "Command envelopes sent, labeled by command type.",
		}, []string{"command"}),
		CommandsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmweave_commands_received_total",
			Help: "Command envelopes received, labeled by command type.",
		}, []string{"command"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmweave_command_errors_total",
			Help: "Command envelopes that returned a non-ok response, labeled by command type.",
		}, []string{"command"}),
		InferenceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmweave_inference_requests_total",
			Help: "Inference requests accepted by the coordinator, labeled by the strategy used to resolve the pipeline.",
		}, []string{"strategy"}),
		InferenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmweave_inference_failures_total",
			Help: "Inference requests that failed, labeled by where they failed: pipeline (before any stage ran), shard (in a stage), or unknown.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swarmweave_stage_duration_seconds",
			Help:    "Time spent dispatching one shard's EXECUTE_TASK RPC.",
			Buckets: prometheus.DefBuckets,
		}, []string{"shard"}),
		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swarmweave_active_requests",
			Help: "In-flight inference requests being routed by the coordinator.",
		}),
		DiscoveryCompleteness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swarmweave_discovery_completeness_ratio",
			Help: "Fraction of shards with at least one fresh announcement in the Discovery Index, in [0,1].",
		}),
		StrategyFallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmweave_strategy_fallbacks_total",
			Help: "Times a fallback strategy phase was entered, labeled by strategy name.",
		}, []string{"strategy"}),
	}

	reg.MustRegister(
		r.CommandsSent,
		r.CommandsReceived,
		r.CommandErrors,
		r.InferenceRequests,
		r.InferenceFailures,
		r.StageDuration,
		r.ActiveRequests,
		r.DiscoveryCompleteness,
		r.StrategyFallbacksTotal,
	)

	return r
}

// Handler returns the http.Handler serving this registry's metrics in the
// Prometheus text exposition format, for mounting at "/metrics".
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
