package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EntriesStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noema_memory_entries_stored_total",
			Help: "Total number of memory entries stored, by kind.",
		},
		[]string{"kind"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noema_memory_queries_total",
			Help: "Total number of memory queries, by mode (exact or semantic).",
		},
		[]string{"mode"},
	)

	DeletesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "noema_memory_deletes_total",
			Help: "Total number of delete broadcasts.",
		},
	)

	SemanticResultSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "noema_memory_semantic_results",
			Help:    "Result set sizes returned by semantic search.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	HookFiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noema_memory_hook_firings_total",
			Help: "Total number of reflexive hook invocations, by event type.",
		},
		[]string{"event"},
	)

	HookErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noema_memory_hook_errors_total",
			Help: "Total number of reflexive hook failures, by event type.",
		},
		[]string{"event"},
	)

	ClustersConsolidatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noema_memory_clusters_consolidated_total",
			Help: "Total number of clusters processed by consolidation, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers all collectors with the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		EntriesStoredTotal,
		QueriesTotal,
		DeletesTotal,
		SemanticResultSize,
		HookFiringsTotal,
		HookErrorsTotal,
		ClustersConsolidatedTotal,
	)
}
