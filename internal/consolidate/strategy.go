// Package consolidate implements the batch consolidation pipeline:
// cluster related memory entries and replace each coherent cluster
// with one summarized entry, written back through the manager.
package consolidate

import (
	"context"
	"time"

	"github.com/noema-platform/noema/internal/memory"
)

// Options tunes one consolidation run.
type Options struct {
	// MaxEntries caps the candidate set fetched from the manager.
	MaxEntries int
	// MinClusterSize discards smaller clusters before summarization.
	MinClusterSize int
	// SimilarityThreshold admits an entry into a cluster when its
	// similarity to the cluster's first member reaches it.
	SimilarityThreshold float64
	// MaxMemoryAge restricts candidates to entries created within the
	// window. Zero means no age bound.
	MaxMemoryAge time.Duration
	// Kinds restricts the candidate query. Empty means all kinds.
	Kinds []memory.Kind
	// AgentIDs restricts candidates to these owners. Empty means all.
	AgentIDs []string
	// IncludePrivate admits private entries into consolidation.
	IncludePrivate bool
	// SummaryKind is the kind assigned to consolidated entries.
	SummaryKind memory.Kind
}

// DefaultOptions returns the consolidation defaults.
func DefaultOptions() Options {
	return Options{
		MaxEntries:          200,
		MinClusterSize:      2,
		SimilarityThreshold: 0.7,
		SummaryKind:         memory.KindLongTerm,
	}
}

// Clusterer groups a candidate set into coherent clusters.
type Clusterer interface {
	IdentifyClusters(ctx context.Context, entries []memory.Entry, opts Options) ([]*memory.Cluster, error)
}

// Summarizer turns one cluster into one new consolidated entry.
type Summarizer interface {
	SummarizeCluster(ctx context.Context, c *memory.Cluster, opts Options) (memory.Entry, error)
}

// TextSummarizer is the external summarization capability: a set of
// related entries in, one condensed text out. Typically backed by a
// language model.
type TextSummarizer interface {
	Summarize(ctx context.Context, entries []memory.Entry) (string, error)
}

// Result reports the outcome for one cluster. Failed clusters keep
// their Consolidated flag clear so a later run can retry them.
type Result struct {
	Cluster *memory.Cluster `json:"cluster"`
	Entry   *memory.Entry   `json:"entry,omitempty"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
}
