// Package embed generates vector embeddings for memory items. The
// production implementation talks to any OpenAI-compatible embedding
// API; the mock produces deterministic vectors for tests and seeding.
package embed

import (
	"context"
	"math"
)

// Embedder generates vector embeddings from text for semantic
// similarity search. Implementations must be thread-safe for
// concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings
	// in a batch, returned in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Normalize scales a vector to unit length in place and returns it.
// Stored embeddings are normalized so cosine similarity reduces to a
// dot product and pgvector's cosine index behaves well.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
