package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder generates deterministic unit vectors from a text hash.
// Identical texts embed identically; distinct texts are close to
// orthogonal. It carries no semantic signal and exists for tests and
// offline development where a real embedding backend is unavailable.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder. dims <= 0 defaults to 384,
// matching all-MiniLM-L6-v2.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	hash := fnv.New64a()
	hash.Write([]byte(text))
	seed := hash.Sum64()

	vec := make([]float32, h.dims)
	for i := range vec {
		// LCG keeps the expansion deterministic per seed.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (h *HashEmbedder) Similarity(a, b []float32) float64 {
	return Cosine(a, b)
}

func (h *HashEmbedder) Dimensions() int { return h.dims }
