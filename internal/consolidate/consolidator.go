package consolidate

import (
	"context"
	"log/slog"
	"time"

	"github.com/noema-platform/noema/internal/memory"
	"github.com/noema-platform/noema/internal/metrics"
)

// Consolidator orchestrates the clustering and summarization
// strategies over a queried candidate set and writes consolidated
// entries back through the manager. Scheduling is not its concern:
// callers decide when a run happens.
type Consolidator struct {
	manager    *memory.Manager
	clusterer  Clusterer
	summarizer Summarizer
}

// New creates a consolidator.
func New(manager *memory.Manager, clusterer Clusterer, summarizer Summarizer) *Consolidator {
	return &Consolidator{
		manager:    manager,
		clusterer:  clusterer,
		summarizer: summarizer,
	}
}

// Consolidate fetches candidates matching the base query narrowed by
// the options, clusters them, summarizes every cluster reaching
// MinClusterSize, and stores the summaries. One result is returned per
// surviving cluster; a failed cluster never aborts its siblings.
// An empty candidate set yields an empty result, not an error.
func (c *Consolidator) Consolidate(ctx context.Context, base memory.Query, opts Options) ([]Result, error) {
	q := c.effectiveQuery(base, opts)

	candidates, err := c.manager.Query(ctx, q, opts.Kinds...)
	if err != nil {
		return nil, err
	}
	candidates = filterKinds(candidates, opts.Kinds)
	candidates = filterAgents(candidates, opts.AgentIDs)
	if opts.MaxEntries > 0 && len(candidates) > opts.MaxEntries {
		candidates = candidates[:opts.MaxEntries]
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	clusters, err := c.clusterer.IdentifyClusters(ctx, candidates, opts)
	if err != nil {
		return nil, err
	}

	// Undersized clusters are dropped entirely, not reported as failures.
	surviving := clusters[:0]
	for _, cl := range clusters {
		if len(cl.Entries) >= opts.MinClusterSize {
			surviving = append(surviving, cl)
		}
	}

	results := c.ProcessClusters(ctx, surviving, opts)
	c.manager.EmitConsolidateEvent(ctx)
	return results, nil
}

// ProcessClusters summarizes and stores each cluster, reporting one
// result per cluster. Clusters already marked consolidated are
// reported as failed rather than silently dropped, so callers see
// every cluster they submitted. It is exported for retry flows that
// resubmit clusters from earlier runs.
func (c *Consolidator) ProcessClusters(ctx context.Context, clusters []*memory.Cluster, opts Options) []Result {
	results := make([]Result, 0, len(clusters))
	for _, cl := range clusters {
		results = append(results, c.processCluster(ctx, cl, opts))
	}
	return results
}

func (c *Consolidator) processCluster(ctx context.Context, cl *memory.Cluster, opts Options) Result {
	if cl.Consolidated {
		metrics.ClustersConsolidatedTotal.WithLabelValues("skipped").Inc()
		return Result{Cluster: cl, Success: false, Error: "already consolidated"}
	}

	entry, err := c.summarizer.SummarizeCluster(ctx, cl, opts)
	if err != nil {
		metrics.ClustersConsolidatedTotal.WithLabelValues("failed").Inc()
		slog.Warn("cluster summarization failed",
			"cluster_id", cl.ID,
			"size", len(cl.Entries),
			"error", err)
		return Result{Cluster: cl, Success: false, Error: err.Error()}
	}

	if _, err := c.manager.Store(ctx, &entry); err != nil {
		metrics.ClustersConsolidatedTotal.WithLabelValues("failed").Inc()
		slog.Warn("storing consolidated entry failed",
			"cluster_id", cl.ID,
			"error", err)
		return Result{Cluster: cl, Success: false, Error: err.Error()}
	}

	cl.Consolidated = true
	cl.UpdatedAt = time.Now()
	metrics.ClustersConsolidatedTotal.WithLabelValues("success").Inc()
	return Result{Cluster: cl, Entry: &entry, Success: true}
}

func (c *Consolidator) effectiveQuery(base memory.Query, opts Options) memory.Query {
	q := base
	if opts.MaxMemoryAge > 0 {
		cutoff := time.Now().Add(-opts.MaxMemoryAge)
		if q.CreatedAfter == nil || cutoff.After(*q.CreatedAfter) {
			q.CreatedAfter = &cutoff
		}
	}
	if len(opts.AgentIDs) == 1 {
		q.OwnerAgentID = opts.AgentIDs[0]
	}
	if !opts.IncludePrivate {
		q.ExcludePrivate = true
	}
	if opts.MaxEntries > 0 {
		q.MaxResults = opts.MaxEntries
	}
	return q
}

// filterKinds keeps only entries of one of the given kinds. The kinds
// also serve as the provider-selection hint, but a provider serving
// several kinds returns entries outside the requested set, so the
// candidate list is filtered again here.
func filterKinds(entries []memory.Entry, kinds []memory.Kind) []memory.Entry {
	if len(kinds) == 0 {
		return entries
	}
	allowed := make(map[memory.Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	out := entries[:0]
	for _, e := range entries {
		if allowed[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

// filterAgents keeps only entries owned by one of the given agents.
// With zero or one agent the query already constrains ownership.
func filterAgents(entries []memory.Entry, agentIDs []string) []memory.Entry {
	if len(agentIDs) <= 1 {
		return entries
	}
	allowed := make(map[string]bool, len(agentIDs))
	for _, id := range agentIDs {
		allowed[id] = true
	}
	out := entries[:0]
	for _, e := range entries {
		if allowed[e.OwnerAgentID] {
			out = append(out, e)
		}
	}
	return out
}
