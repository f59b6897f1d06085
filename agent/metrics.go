package agent

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the background agent.
var (
	cacheHitCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_cache_hits_total",
			Help: "Number of intercepted requests served from the asset cache.",
		},
	)
	cacheMissCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_cache_misses_total",
			Help: "Number of intercepted requests that fell through to the network.",
		},
	)
	pushShownCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_push_notifications_total",
			Help: "Number of push payloads displayed as notifications.",
		},
	)
	pushFailureCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_push_failures_total",
			Help: "Number of push payloads that failed the push handler.",
		},
	)
)

// RegisterMetrics registers the agent metrics on the default registry.
// Call it at most once per process.
func RegisterMetrics() {
	prometheus.MustRegister(cacheHitCtr)
	prometheus.MustRegister(cacheMissCtr)
	prometheus.MustRegister(pushShownCtr)
	prometheus.MustRegister(pushFailureCtr)
}
