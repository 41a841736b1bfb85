package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noema-platform/noema/internal/embedding"
	"github.com/noema-platform/noema/internal/memory"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(embedding.NewHashEmbedder(8))
	require.NoError(t, err)
	return s
}

// storeWithVector indexes an entry carrying a pre-computed embedding,
// bypassing the embedder for deterministic similarity in tests.
func storeWithVector(t *testing.T, s *Store, id, content string, vec []float32) {
	t.Helper()
	err := s.Store(context.Background(), &memory.Entry{
		ID:        id,
		Kind:      memory.KindSemantic,
		Content:   content,
		Embedding: vec,
	})
	require.NoError(t, err)
}

func TestStore_EmbedsOnWrite(t *testing.T) {
	s := setupStore(t)

	e := &memory.Entry{ID: "e1", Kind: memory.KindSemantic, Content: "gophers burrow"}
	require.NoError(t, s.Store(context.Background(), e))

	assert.Len(t, e.Embedding, 8)
	assert.Equal(t, "vector-chromem", e.EmbeddingMeta["provider"])
	assert.Equal(t, "8", e.EmbeddingMeta["dimensions"])
}

func TestStore_RejectsUnsupportedKind(t *testing.T) {
	s := setupStore(t)

	err := s.Store(context.Background(), &memory.Entry{
		ID: "e1", Kind: memory.KindShortTerm, Content: "x",
	})
	require.Error(t, err)
	var verr *memory.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStore_SemanticSearchRanksAndFilters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	storeWithVector(t, s, "near", "close match", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	storeWithVector(t, s, "far", "distant", []float32{0, 1, 0, 0, 0, 0, 0, 0})

	got, err := s.SemanticSearch(ctx, memory.Query{
		SimilarityToVector: []float32{1, 0, 0, 0, 0, 0, 0, 0},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Entry.ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 0.001)

	// Threshold cuts the orthogonal entry.
	got, err = s.SemanticSearch(ctx, memory.Query{
		SimilarityToVector:  []float32{1, 0, 0, 0, 0, 0, 0, 0},
		SimilarityThreshold: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Entry.ID)
}

func TestStore_SemanticSearchByText(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, &memory.Entry{
		ID: "same", Kind: memory.KindSemantic, Content: "the exact phrase",
	}))

	// The deterministic embedder maps identical text to identical
	// vectors, so searching for the stored content scores 1.
	got, err := s.SemanticSearch(ctx, memory.Query{
		SimilarityTo:        "the exact phrase",
		SimilarityThreshold: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "same", got[0].Entry.ID)
}

func TestStore_SemanticSearchTopK(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	storeWithVector(t, s, "a", "x", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	storeWithVector(t, s, "b", "x", []float32{0.9, 0.1, 0, 0, 0, 0, 0, 0})
	storeWithVector(t, s, "c", "x", []float32{0.8, 0.2, 0, 0, 0, 0, 0, 0})

	got, err := s.SemanticSearch(ctx, memory.Query{
		SimilarityToVector: []float32{1, 0, 0, 0, 0, 0, 0, 0},
		MaxResults:         2,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_SemanticSearchRequiresTerm(t *testing.T) {
	s := setupStore(t)

	_, err := s.SemanticSearch(context.Background(), memory.Query{})
	require.Error(t, err)
	var verr *memory.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStore_SemanticSearchEmptyCollection(t *testing.T) {
	s := setupStore(t)

	got, err := s.SemanticSearch(context.Background(), memory.Query{SimilarityTo: "anything"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_ExactQueryUsesFilters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, &memory.Entry{
		ID: "mine", Kind: memory.KindSemantic, Content: "x", OwnerAgentID: "agent-1",
	}))
	require.NoError(t, s.Store(ctx, &memory.Entry{
		ID: "theirs", Kind: memory.KindSemantic, Content: "x", OwnerAgentID: "agent-2",
	}))

	got, err := s.Query(ctx, memory.Query{OwnerAgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mine", got[0].ID)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, &memory.Entry{
		ID: "e1", Kind: memory.KindSemantic, Content: "x",
	}))
	require.NoError(t, s.Delete(ctx, "e1"))
	require.NoError(t, s.Delete(ctx, "e1"))
	require.NoError(t, s.Delete(ctx, "never-indexed"))

	got, err := s.SemanticSearch(ctx, memory.Query{SimilarityTo: "x"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
