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


// Seeder fills a stash with sample snippets for demos and manual
// testing of query and vector search. Embeddings come from the
// deterministic mock embedder, so seeded databases are reproducible
// without any embedding service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/gostash"
	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/embed"
	"github.com/poiesic/gostash/ingest"
)

type sample struct {
	title   string
	content string
	tags    []string
}

var samples = []sample{
	{"Go error wrapping", "Wrap errors with fmt.Errorf and %w so callers can match them with errors.Is.", []string{"go", "errors"}},
	{"Go channels", "Unbuffered channels synchronize; buffered channels decouple producer and consumer.", []string{"go", "concurrency"}},
	{"Context cancellation", "Pass context.Context as the first parameter and honor Done in every blocking loop.", []string{"go", "concurrency"}},
	{"SQLite WAL mode", "WAL allows concurrent readers with a single writer and makes busy_timeout actually useful.", []string{"sqlite", "storage"}},
	{"Postgres upsert", "INSERT ... ON CONFLICT DO UPDATE keeps the original created_at while refreshing the row.", []string{"postgres", "storage"}},
	{"pgvector cosine", "The <=> operator returns cosine distance; index the column with HNSW for large tables.", []string{"postgres", "vectors"}},
	{"LSM compaction", "BadgerDB merges levels downward; value log garbage collection runs separately.", []string{"badger", "storage"}},
	{"Embedding normalization", "Normalize vectors to unit length so cosine similarity reduces to a dot product.", []string{"vectors"}},
	{"Tag queries", "Tag filters are conjunctive: an item must carry every requested tag to match.", []string{"search"}},
	{"Deterministic ids", "Hash the content with BLAKE2b to get a stable identity for deduplicated ingestion.", []string{"ingestion"}},
	{"Table-driven tests", "A slice of cases with a name, input and expectation keeps test intent visible.", []string{"go", "testing"}},
	{"Worker pools", "Bound concurrency with a fixed pool instead of spawning a goroutine per request.", []string{"go", "concurrency"}},
}

func main() {
	databaseURL := flag.String("db", "seed.db", "database URL or path to seed")
	dim := flag.Int("dim", 384, "mock embedding width")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(*databaseURL, *dim); err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}
}

func run(databaseURL string, dim int) error {
	ctx := context.Background()

	backend, err := gostash.OpenBackend(ctx, databaseURL, 0, slog.Default())
	if err != nil {
		return err
	}
	defer backend.Close()

	pipeline, err := ingest.NewPipeline(backend, embed.NewMock(dim))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	for _, s := range samples {
		opts := &ingest.IngestOptions{Tags: s.tags, Dedupe: true}
		if _, err := pipeline.Ingest(ctx, s.title, []string{s.content}, opts); err != nil {
			return err
		}
	}
	pipeline.Wait()

	slog.Info("seeded stash", "db", databaseURL, "items", len(samples))

	// Show what a search over the seeded data looks like.
	vector, err := embed.NewMock(dim).EmbedText(ctx, "how do goroutines coordinate")
	if err != nil {
		return err
	}
	results, err := backend.VectorSearch(ctx, vector, 3)
	if err != nil {
		return err
	}
	for _, result := range results {
		fmt.Printf("%.4f  %s\n", result.Score, core.MetadataTitle(result.Item))
	}
	return nil
}
