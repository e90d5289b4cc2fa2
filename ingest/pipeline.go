package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/embed"
	"github.com/poiesic/gostash/storage"
)

// Pipeline orchestrates bulk ingestion of snippets. Saving is
// synchronous; embedding runs on a worker pool afterwards and re-saves
// each item with its vector attached.
type Pipeline struct {
	backend  storage.Backend
	embedder embed.Embedder
	pool     *ants.Pool
	pending  sync.WaitGroup
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline writing to the given
// backend. The embedder may be nil, in which case items are stored
// without vectors.
func NewPipeline(backend storage.Backend, embedder embed.Embedder, opts ...Option) (*Pipeline, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		backend:  backend,
		embedder: embedder,
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	// Tags are attached to every snippet in the batch.
	Tags []string

	// Dedupe derives each snippet's identity from its content, so
	// ingesting the same text twice lands on the same item instead of
	// creating a duplicate.
	Dedupe bool
}

// Ingest stores each text as a snippet titled by title and schedules
// embedding in the background. It returns the stored snippets; their
// vectors are attached asynchronously.
func (p *Pipeline) Ingest(ctx context.Context, title string, texts []string, opts *IngestOptions) ([]*core.Snippet, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	snippets := make([]*core.Snippet, 0, len(texts))
	for _, text := range texts {
		snippet := core.NewSnippet(title, text, opts.Tags...)
		if opts.Dedupe {
			snippet.Id = core.IDFromContent(text)
		}
		if err := snippet.Validate(); err != nil {
			return nil, err
		}
		if err := p.backend.Save(ctx, snippet); err != nil {
			return nil, err
		}
		snippets = append(snippets, snippet)
	}

	if p.embedder == nil || len(snippets) == 0 {
		return snippets, nil
	}

	batch := snippets
	p.pending.Add(1)
	err := p.pool.Submit(func() {
		defer p.pending.Done()
		p.embedBatch(context.Background(), batch)
	})
	if err != nil {
		p.pending.Done()
		p.logger.Error("error scheduling embedding batch", "err", err)
	}
	return snippets, nil
}

// Wait blocks until all scheduled embedding work has finished.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Release releases the worker pool after draining scheduled work. The
// pipeline should not be used afterwards.
func (p *Pipeline) Release() {
	p.pending.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) embedBatch(ctx context.Context, snippets []*core.Snippet) {
	texts := make([]string, len(snippets))
	for i, s := range snippets {
		texts[i] = s.Contents
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		p.logger.Error("error embedding batch", "count", len(texts), "err", err)
		return
	}
	if len(vectors) != len(snippets) {
		p.logger.Error("embedding batch size mismatch", "want", len(snippets), "got", len(vectors))
		return
	}

	for i, s := range snippets {
		s.Vector = vectors[i]
		if err := p.backend.Save(ctx, s); err != nil {
			p.logger.Error("error saving embedded snippet", "id", s.Id, "err", err)
		}
	}
}
