package feedview

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the synchronization loop.
var (
	syncCycleCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedview_sync_cycles_total",
			Help: "Number of feed fetch cycles started.",
		},
	)
	fetchFailureCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedview_fetch_failures_total",
			Help: "Number of feed fetches that failed and left the previous render untouched.",
		},
	)
	staleDropCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedview_stale_responses_dropped_total",
			Help: "Number of fetch responses discarded because a newer response was already applied.",
		},
	)
	orphanDropCtr = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedview_orphan_posts_dropped_total",
			Help: "Number of posts excluded from the forest because their parent was missing from the batch.",
		},
	)
)

// RegisterMetrics registers the feed metrics on the default registry.
// Call it at most once per process.
func RegisterMetrics() {
	prometheus.MustRegister(syncCycleCtr)
	prometheus.MustRegister(fetchFailureCtr)
	prometheus.MustRegister(staleDropCtr)
	prometheus.MustRegister(orphanDropCtr)
}
