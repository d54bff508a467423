package dedup

import (
	"context"
	"fmt"
	"math"
)

// Embedder is the slice of the LLM client the Tier-2 scorer needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingScorer scores text pairs by cosine similarity of their
// embeddings, clamped to [0,1]. It satisfies SemanticScorer.
type EmbeddingScorer struct {
	embedder Embedder
}

// NewEmbeddingScorer wraps an embedder as the gate's Tier-2 scorer.
func NewEmbeddingScorer(embedder Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder}
}

// Score embeds both texts and returns their clamped cosine similarity.
func (s *EmbeddingScorer) Score(ctx context.Context, a, b string) (float64, error) {
	va, err := s.embedder.Embed(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("failed to embed first text: %w", err)
	}
	vb, err := s.embedder.Embed(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("failed to embed second text: %w", err)
	}
	return CosineSimilarity(va, vb)
}

// CosineSimilarity computes cosine similarity between two vectors of equal
// dimension, clamping negative values to 0 so the result stays in [0,1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty embedding")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude embedding")
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0, nil
	}
	if cos > 1 {
		return 1, nil
	}
	return cos, nil
}
