package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI implements Embedder against any OpenAI-compatible embedding
// API, including local servers such as Ollama and vLLM.
type OpenAI struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an embedder for the given endpoint and model. Pass
// an empty token for local services that don't authenticate.
func NewOpenAI(host, model, token string) (Embedder, error) {
	if host == "" {
		return nil, fmt.Errorf("embedding host is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if token == "" {
		// The client rejects an empty token even when the server
		// ignores authentication entirely.
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAI{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// EmbedText generates a normalized embedding for a single text string.
func (e *OpenAI) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts generates normalized embeddings for multiple text strings
// in a batch.
func (e *OpenAI) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	for i := range vectors {
		vectors[i] = Normalize(vectors[i])
	}
	return vectors, nil
}
