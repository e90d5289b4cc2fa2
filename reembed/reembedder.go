// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/embed"
	"github.com/poiesic/gostash/storage"
)

// enumerationLimit caps how many items one migration run will touch.
// Backends treat the query limit as a hard result cap, so enumerating
// "everything" means asking for a limit no real stash reaches.
const enumerationLimit = 1 << 30

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of items sent to the embedder per call.
	BatchSize int

	// ReportInterval is how often to report progress, in items.
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder regenerates the embeddings of every item in a backend.
type Reembedder struct {
	backend  storage.Backend
	embedder embed.Embedder
	config   *Config
	progress io.Writer
}

// NewReembedder creates a reembedder. progress receives human-readable
// status output, typically os.Stderr.
func NewReembedder(backend storage.Backend, embedder embed.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reembedder{
		backend:  backend,
		embedder: embedder,
		config:   config,
		progress: progress,
	}
}

// Run reembeds every item that can carry a vector. Items whose type
// does not support embedding replacement are skipped and counted.
func (r *Reembedder) Run(ctx context.Context) error {
	items, err := r.backend.Query(ctx, core.Query{}.WithLimit(enumerationLimit))
	if err != nil {
		return fmt.Errorf("enumerate items: %w", err)
	}

	embeddable := make([]core.MemoryItem, 0, len(items))
	skipped := 0
	for _, item := range items {
		if _, ok := item.(core.Embeddable); ok {
			embeddable = append(embeddable, item)
		} else {
			skipped++
		}
	}

	if len(embeddable) == 0 {
		fmt.Fprintf(r.progress, "No embeddable items found (%d items total)\n", len(items))
		return nil
	}

	fmt.Fprintf(r.progress, "Reembedding %d items (batch size: %d, skipped: %d)\n",
		len(embeddable), r.config.BatchSize, skipped)

	tracker := NewProgressTracker(r.progress, len(embeddable), r.config.ReportInterval)
	tracker.Start()

	processed := 0
	for start := 0; start < len(embeddable); start += r.config.BatchSize {
		end := min(start+r.config.BatchSize, len(embeddable))
		batch := embeddable[start:end]

		if err := r.processBatch(ctx, batch); err != nil {
			return fmt.Errorf("process batch at %d: %w", start, err)
		}

		processed += len(batch)
		tracker.Update(processed)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d items in %v (%.1f items/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())
	return nil
}

func (r *Reembedder) processBatch(ctx context.Context, batch []core.MemoryItem) error {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.ItemContent()
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = r.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d items", len(vectors), len(batch))
	}

	for i, item := range batch {
		item.(core.Embeddable).SetEmbeddingVector(vectors[i])
		err := RetryWithBackoff(ctx, func() error {
			return r.backend.Save(ctx, item)
		}, r.config.MaxRetries, r.config.RetryDelay)
		if err != nil {
			return fmt.Errorf("save item %s: %w", item.ItemID(), err)
		}
	}
	return nil
}
