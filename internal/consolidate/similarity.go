package consolidate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noema-platform/noema/internal/embedding"
	"github.com/noema-platform/noema/internal/memory"
)

// SimilarityClusterer groups entries by embedding similarity against
// each cluster's first member.
//
// The pass is greedy and single-pass: each entry joins the first
// existing cluster whose seed it is similar enough to, otherwise it
// opens a new singleton cluster. The grouping depends on input order
// and is not globally optimal; the only guarantee is that every member
// scores at least the threshold against its cluster's first entry.
type SimilarityClusterer struct {
	embedder embedding.Capability
}

// NewSimilarityClusterer creates the default clustering strategy.
func NewSimilarityClusterer(embedder embedding.Capability) *SimilarityClusterer {
	return &SimilarityClusterer{embedder: embedder}
}

func (c *SimilarityClusterer) IdentifyClusters(ctx context.Context, entries []memory.Entry, opts Options) ([]*memory.Cluster, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	if err := c.backfillEmbeddings(ctx, entries); err != nil {
		return nil, err
	}

	now := time.Now()
	var clusters []*memory.Cluster

	for _, e := range entries {
		placed := false
		for _, cl := range clusters {
			seed := cl.Entries[0]
			if c.embedder.Similarity(e.Embedding, seed.Embedding) >= opts.SimilarityThreshold {
				cl.Entries = append(cl.Entries, e)
				cl.UpdatedAt = now
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &memory.Cluster{
				ID:        uuid.NewString(),
				CreatedAt: now,
				UpdatedAt: now,
				Entries:   []memory.Entry{e},
			})
		}
	}

	for _, cl := range clusters {
		cl.CoherenceScore = c.coherence(cl)
	}
	return clusters, nil
}

// backfillEmbeddings computes vectors for entries lacking one, in a
// single batch call.
func (c *SimilarityClusterer) backfillEmbeddings(ctx context.Context, entries []memory.Entry) error {
	var missing []int
	var texts []string
	for i := range entries {
		if len(entries[i].Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, entries[i].Content)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return memory.NewEmbeddingError("cluster candidates", err)
	}
	for j, i := range missing {
		entries[i].Embedding = vecs[j]
	}
	return nil
}

// coherence is the mean similarity of members to the cluster's first
// entry. Singletons score 1.
func (c *SimilarityClusterer) coherence(cl *memory.Cluster) float64 {
	if len(cl.Entries) <= 1 {
		return 1
	}
	seed := cl.Entries[0]
	var sum float64
	for _, e := range cl.Entries[1:] {
		sum += c.embedder.Similarity(e.Embedding, seed.Embedding)
	}
	return sum / float64(len(cl.Entries)-1)
}
