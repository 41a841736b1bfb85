// Package vector provides a semantic memory provider backed by
// chromem-go, an embedded pure-Go vector database. Embeddings are
// computed on write through the injected embedding capability.
package vector

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/noema-platform/noema/internal/embedding"
	"github.com/noema-platform/noema/internal/memory"
)

const defaultTopK = 50

// Store indexes semantic entries in a chromem collection and keeps a
// side map for exact-filter queries and deletes, which chromem does
// not serve directly.
type Store struct {
	col      *chromem.Collection
	embedder embedding.Capability

	mu      sync.RWMutex
	entries map[string]memory.Entry
}

// New creates an in-memory chromem-backed semantic store.
func New(embedder embedding.Capability) (*Store, error) {
	db := chromem.NewDB()
	// nil embedding func: we always provide vectors ourselves.
	col, err := db.CreateCollection("memories", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}
	return &Store{
		col:      col,
		embedder: embedder,
		entries:  make(map[string]memory.Entry),
	}, nil
}

func (s *Store) Name() string { return "vector-chromem" }

func (s *Store) SupportsKind(k memory.Kind) bool { return k == memory.KindSemantic }

func (s *Store) Store(ctx context.Context, e *memory.Entry) error {
	if e.Kind != memory.KindSemantic {
		return &memory.ValidationError{Reason: "kind " + string(e.Kind) + " not supported by vector store"}
	}

	if len(e.Embedding) == 0 {
		vec, err := s.embedder.Embed(ctx, e.Content)
		if err != nil {
			return memory.NewEmbeddingError("entry content", err)
		}
		e.Embedding = vec
		e.EmbeddingMeta = map[string]string{
			"provider":   s.Name(),
			"dimensions": strconv.Itoa(s.embedder.Dimensions()),
		}
	}

	doc := chromem.Document{
		ID:        e.ID,
		Content:   e.Content,
		Embedding: e.Embedding,
		Metadata: map[string]string{
			"kind":     string(e.Kind),
			"agent_id": e.OwnerAgentID,
			"scope":    string(e.Scope),
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("indexing document %s: %w", e.ID, err)
	}

	s.mu.Lock()
	s.entries[e.ID] = *e
	s.mu.Unlock()
	return nil
}

func (s *Store) Query(_ context.Context, q memory.Query) ([]memory.Entry, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []memory.Entry
	for _, e := range s.entries {
		if e.Expired(now) {
			continue
		}
		if q.Matches(&e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SemanticSearch ranks entries by cosine similarity to the query text
// or vector, cuts at the query threshold and returns at most the
// query's MaxResults (or a provider default).
func (s *Store) SemanticSearch(ctx context.Context, q memory.Query) ([]memory.ScoredEntry, error) {
	vec := q.SimilarityToVector
	if len(vec) == 0 {
		if q.SimilarityTo == "" {
			return nil, &memory.ValidationError{Reason: "semantic search without similarity term"}
		}
		embedded, err := s.embedder.Embed(ctx, q.SimilarityTo)
		if err != nil {
			return nil, memory.NewEmbeddingError("query text", err)
		}
		vec = embedded
	}

	topK := q.MaxResults
	if topK <= 0 {
		topK = defaultTopK
	}
	// chromem rejects nResults above the collection size.
	if count := s.col.Count(); count < topK {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := s.col.QueryEmbedding(ctx, vec, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []memory.ScoredEntry
	for _, r := range results {
		sim := float64(r.Similarity)
		if q.SimilarityThreshold > 0 && sim < q.SimilarityThreshold {
			continue
		}
		e, ok := s.entries[r.ID]
		if !ok {
			continue
		}
		if !q.Matches(&e) {
			continue
		}
		out = append(out, memory.ScoredEntry{Entry: e, Similarity: sim})
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, held := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if !held {
		return nil
	}
	if err := s.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("removing document %s from index: %w", id, err)
	}
	return nil
}
