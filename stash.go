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


// Package gostash is a persistence layer for heterogeneous memory
// items with swappable storage backends. A Stash names a configured
// store; the backend behind it is chosen at runtime from the
// database URL, so the same program can run against an in-memory map,
// an embedded database file or a networked PostgreSQL server without
// code changes.
package gostash

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/gostash/storage"
	"github.com/poiesic/gostash/storage/badgerkv"
	"github.com/poiesic/gostash/storage/memory"
	"github.com/poiesic/gostash/storage/postgres"
	"github.com/poiesic/gostash/storage/sqlite"
)

// ServiceType describes what a stash is used for. It does not change
// storage behavior; tools use it to decide which operations make sense
// against a stash.
type ServiceType string

const (
	// ServiceSnippet stores small units of text with tags.
	ServiceSnippet ServiceType = "snippet"

	// ServiceRAG stores embedded documents for similarity retrieval.
	ServiceRAG ServiceType = "rag"

	// ServiceKnowledgeGraph stores items linked by typed relations.
	ServiceKnowledgeGraph ServiceType = "knowledge_graph"
)

// StashConfig describes one named store.
type StashConfig struct {
	ServiceType ServiceType `yaml:"service_type"`
	DatabaseURL string      `yaml:"database_url"`
	MaxPoolSize int         `yaml:"max_pool_size,omitempty"`
}

// Stash is an open handle to a configured store.
type Stash struct {
	Name    string
	Config  StashConfig
	Backend storage.Backend
}

// Close releases the stash's backend.
func (s *Stash) Close() error {
	return s.Backend.Close()
}

// OpenBackend selects and opens a storage backend from a database URL:
//
//	memory:                            transient in-process store
//	badger://<dir> or badger:<dir>     embedded key-value store
//	sqlite://<path>, sqlite:<path>,
//	or a bare path ending in .db       embedded SQLite file
//	postgres://..., postgresql://...   networked PostgreSQL
//
// Unknown schemes fail with a validation error. maxPool bounds
// concurrent sessions where the backend pools them; zero means the
// backend's default.
func OpenBackend(ctx context.Context, databaseURL string, maxPool int, logger *slog.Logger) (storage.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case databaseURL == "memory:" || databaseURL == ":memory:":
		return memory.New(memory.WithLogger(logger)), nil

	case strings.HasPrefix(databaseURL, "badger://"):
		return badgerkv.Open(strings.TrimPrefix(databaseURL, "badger://"), badgerkv.WithLogger(logger))
	case strings.HasPrefix(databaseURL, "badger:"):
		return badgerkv.Open(strings.TrimPrefix(databaseURL, "badger:"), badgerkv.WithLogger(logger))

	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		opts := []postgres.Option{postgres.WithLogger(logger)}
		if maxPool > 0 {
			opts = append(opts, postgres.WithPoolSize(int32(maxPool)))
		}
		return postgres.Open(ctx, databaseURL, opts...)

	case strings.HasPrefix(databaseURL, "sqlite://"):
		return openSQLite(strings.TrimPrefix(databaseURL, "sqlite://"), maxPool, logger)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return openSQLite(strings.TrimPrefix(databaseURL, "sqlite:"), maxPool, logger)
	case strings.HasSuffix(databaseURL, ".db") && !strings.Contains(databaseURL, "://"):
		return openSQLite(databaseURL, maxPool, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported database url %q", storage.ErrValidation, databaseURL)
	}
}

func openSQLite(path string, maxPool int, logger *slog.Logger) (storage.Backend, error) {
	opts := []sqlite.Option{sqlite.WithLogger(logger)}
	if maxPool > 0 {
		opts = append(opts, sqlite.WithPoolSize(maxPool))
	}
	return sqlite.Open(path, opts...)
}

// OpenStash opens the named stash from the user configuration.
func OpenStash(ctx context.Context, name string, logger *slog.Logger) (*Stash, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Open(ctx, name, logger)
}

// Open opens a named stash from an already loaded configuration. An
// empty name selects the configured default stash.
func (c *Config) Open(ctx context.Context, name string, logger *slog.Logger) (*Stash, error) {
	if name == "" {
		name = c.DefaultStash
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no stash named and no default configured", storage.ErrValidation)
	}
	stashCfg, ok := c.Stashes[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown stash %q", storage.ErrValidation, name)
	}

	backend, err := OpenBackend(ctx, stashCfg.DatabaseURL, stashCfg.MaxPoolSize, logger)
	if err != nil {
		return nil, fmt.Errorf("open stash %q: %w", name, err)
	}
	return &Stash{Name: name, Config: stashCfg, Backend: backend}, nil
}
