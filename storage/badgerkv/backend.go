// Package badgerkv provides an embedded key-value storage backend on
// BadgerDB.
//
// Items are stored as self-describing envelopes under per-item keys;
// relation edges live under a composite prefix so the outgoing edges
// of an item can be read with a single prefix scan. Query and vector
// search are full scans scored in process, which fits the collection
// sizes an embedded store is meant for.
package badgerkv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/storage"
)

// Backend stores items in a BadgerDB database.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Option configures a Backend.
type Option func(*config)

type config struct {
	inMemory bool
	logger   *slog.Logger
}

// WithInMemory keeps the whole database in process memory. Useful for
// tests and throwaway stashes.
func WithInMemory() Option {
	return func(c *config) { c.inMemory = true }
}

// WithLogger sets the backend logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open opens a BadgerDB database at the specified directory, creating
// it if it doesn't exist. The path is ignored when WithInMemory is
// given.
func Open(dirPath string, opts ...Option) (storage.Backend, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var badgerOpts badger.Options
	if cfg.inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(dirPath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(dirPath, 0755); err != nil {
					return nil, fmt.Errorf("%w: create database directory: %v", storage.ErrConnectivity, err)
				}
				info, err = os.Stat(dirPath)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", storage.ErrConnectivity, err)
				}
			} else {
				return nil, fmt.Errorf("%w: %v", storage.ErrConnectivity, err)
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", storage.ErrValidation, dirPath)
		}
		badgerOpts = badger.DefaultOptions(dirPath)
	}

	badgerOpts.Logger = &badgerLoggerAdapter{logger: cfg.logger}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", storage.ErrConnectivity, err)
	}

	cfg.logger.Debug("opened badger backend", "path", dirPath, "in_memory", cfg.inMemory)

	return &Backend{db: db, logger: cfg.logger}, nil
}

// withTx executes fn within a BadgerDB transaction, committing write
// transactions when fn succeeds.
func (b *Backend) withTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	if isWrite {
		return tx.Commit()
	}
	return nil
}

// Save inserts or replaces the item, preserving the stored creation
// time of an existing entry.
func (b *Backend) Save(ctx context.Context, item core.MemoryItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := makeItemKey(item.ItemID())
	return b.withTx(func(tx *badger.Txn) error {
		created, updated := storage.SaveTimes(item)
		if prev, err := tx.Get(key); err == nil {
			err = prev.Value(func(val []byte) error {
				prevCreated, _, err := storage.StoredItemTimes(val)
				if err == nil && !prevCreated.IsZero() {
					created = prevCreated
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("read previous item %s: %w", item.ItemID(), err)
			}
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("read previous item %s: %w", item.ItemID(), err)
		}

		data, err := storage.EncodeItem(item, created, updated)
		if err != nil {
			return err
		}
		return tx.Set(key, data)
	}, true)
}

// Get returns the stored item, or (nil, nil) when no entry exists.
func (b *Backend) Get(ctx context.Context, id uuid.UUID) (core.MemoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var item core.MemoryItem
	err := b.withTx(func(tx *badger.Txn) error {
		entry, err := tx.Get(makeItemKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get item %s: %w", id, err)
		}
		return entry.Value(func(val []byte) error {
			item, err = storage.DecodeStoredItem(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes the item and its outgoing relation edges. Deleting an
// absent item is not an error.
func (b *Backend) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.withTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeItemKey(id)); err != nil {
			return fmt.Errorf("delete item %s: %w", id, err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRelationScanPrefix(id)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := tx.Delete(iter.Item().KeyCopy(nil)); err != nil {
				return fmt.Errorf("delete relations of %s: %w", id, err)
			}
		}
		return nil
	}, true)
}

// Query filters items with a full scan over the item prefix.
func (b *Backend) Query(ctx context.Context, q core.Query) ([]core.MemoryItem, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	limit := storage.ResolveLimit(q)
	if limit == 0 {
		return nil, nil
	}

	var items []core.MemoryItem
	err := b.scanItems(ctx, func(item core.MemoryItem) bool {
		if q.Matches(item) {
			items = append(items, item)
		}
		return len(items) < limit
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// VectorSearch scans every stored embedding and scores it against the
// query vector by cosine similarity.
func (b *Backend) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	var scored []storage.ScoredItem
	err := b.scanItems(ctx, func(item core.MemoryItem) bool {
		if vec := storage.ItemVector(item); len(vec) > 0 {
			scored = append(scored, storage.ScoredItem{
				Item:  item,
				Score: storage.SimilarityScore(storage.Cosine(embedding, vec)),
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	storage.SortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// AddRelation records a typed edge between two stored items. Both
// endpoints are checked inside the write transaction. Recording the
// same edge twice overwrites the same key and is therefore a no-op.
func (b *Backend) AddRelation(ctx context.Context, from, to uuid.UUID, relationType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edge := core.RelationEdge{From: from, To: to, Type: relationType}
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}

	return b.withTx(func(tx *badger.Txn) error {
		for _, endpoint := range []struct {
			role string
			id   uuid.UUID
		}{{"source", from}, {"target", to}} {
			if _, err := tx.Get(makeItemKey(endpoint.id)); err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: relation %s item %s", storage.ErrNotFound, endpoint.role, endpoint.id)
			} else if err != nil {
				return fmt.Errorf("check relation %s: %w", endpoint.role, err)
			}
		}

		data, err := json.Marshal(edge)
		if err != nil {
			return fmt.Errorf("%w: encode relation %s: %v", storage.ErrSerialization, edge.Tuple(), err)
		}
		return tx.Set(makeRelationKey(edge), data)
	}, true)
}

// GetRelated returns the items the given item points at, by prefix
// scanning its outgoing edges. An empty relationType matches edges of
// every type.
func (b *Backend) GetRelated(ctx context.Context, id uuid.UUID, relationType string) ([]core.MemoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []core.MemoryItem
	err := b.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRelationScanPrefix(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var edge core.RelationEdge
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			})
			if err != nil {
				return fmt.Errorf("%w: decode relation: %v", storage.ErrSerialization, err)
			}
			if relationType != "" && edge.Type != relationType {
				continue
			}

			entry, err := tx.Get(makeItemKey(edge.To))
			if err == badger.ErrKeyNotFound {
				// Dangling edge left by a concurrent delete.
				continue
			}
			if err != nil {
				return fmt.Errorf("get related item %s: %w", edge.To, err)
			}
			err = entry.Value(func(val []byte) error {
				item, err := storage.DecodeStoredItem(val)
				if err != nil {
					return err
				}
				items = append(items, item)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// scanItems iterates every stored item in key order, invoking visit
// until it returns false.
func (b *Backend) scanItems(ctx context.Context, visit func(core.MemoryItem) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(itemPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var item core.MemoryItem
			err := iter.Item().Value(func(val []byte) error {
				var err error
				item, err = storage.DecodeStoredItem(val)
				return err
			})
			if err != nil {
				return err
			}
			if !visit(item) {
				return nil
			}
		}
		return nil
	}, false)
}
