package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	v := []float32{0.5, 0.5, 0.1}
	sim, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarity_OppositeClampsToZero(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 0}, []float32{1})
	assert.Error(t, err)
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	_, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	assert.Error(t, err)
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func TestEmbeddingScorer_Score(t *testing.T) {
	scorer := NewEmbeddingScorer(&fakeEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {1, 0},
	}})
	sim, err := scorer.Score(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestEmbeddingScorer_ProviderError(t *testing.T) {
	scorer := NewEmbeddingScorer(&fakeEmbedder{err: errors.New("quota exceeded")})
	_, err := scorer.Score(context.Background(), "a", "b")
	assert.Error(t, err)
}
