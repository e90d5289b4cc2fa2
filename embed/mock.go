package embed

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// Mock is a deterministic Embedder for tests and offline seeding.
// The same text always produces the same unit vector. Behavior can be
// overridden per test via the function fields.
type Mock struct {
	// Dim is the vector width. Zero means DefaultMockDim.
	Dim int

	// EmbedTextFunc is called by EmbedText if set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	callCount atomic.Int64
}

// DefaultMockDim matches the width of small local embedding models.
const DefaultMockDim = 384

var _ Embedder = (*Mock)(nil)

// NewMock creates a mock embedder producing vectors of the given
// width. Zero or negative dim falls back to DefaultMockDim.
func NewMock(dim int) *Mock {
	if dim <= 0 {
		dim = DefaultMockDim
	}
	return &Mock{Dim: dim}
}

// EmbedText generates a deterministic embedding from the text hash.
func (m *Mock) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return m.vector(text), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *Mock) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vector(text)
	}
	return vectors, nil
}

// CallCount returns the number of times any method was called.
func (m *Mock) CallCount() int {
	return int(m.callCount.Load())
}

func (m *Mock) vector(text string) []float32 {
	dim := m.Dim
	if dim <= 0 {
		dim = DefaultMockDim
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	v := make([]float32, dim)
	for i := range v {
		seed = seed*1664525 + 1013904223 // LCG constants
		v[i] = float32(seed%1000)/500.0 - 1
	}
	return Normalize(v)
}
