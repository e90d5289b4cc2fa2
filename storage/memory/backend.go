// Package memory provides a transient in-process storage backend.
//
// Items live in a guarded map and disappear with the process. The
// backend is used for tests and ephemeral stashes. VectorSearch runs in
// a documented degraded mode: every stored item comes back with a
// constant placeholder score of 1.0, so its output is never ranked
// search. Relations are not modeled: AddRelation is a no-op and
// GetRelated always returns nothing.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/storage"
)

// DegradedScore is the placeholder similarity reported for every item
// by this backend's VectorSearch.
const DegradedScore float32 = 1.0

// Backend is an in-memory storage backend guarded by a single
// reader/writer lock.
type Backend struct {
	mu     sync.RWMutex
	items  map[uuid.UUID][]byte // encoded envelopes, keyed by identity
	closed bool
	logger *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates an empty in-memory backend.
func New(opts ...Option) storage.Backend {
	b := &Backend{
		items:  make(map[uuid.UUID][]byte),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Save upserts an item. Items are stored encoded, so later Get calls
// return an independent copy rather than an alias of the caller's
// value.
func (b *Backend) Save(ctx context.Context, item core.MemoryItem) error {
	created, now := storage.SaveTimes(item)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return storage.ErrStorageClosed
	}

	if prev, ok := b.items[item.ItemID()]; ok {
		if prevCreated, _, err := storage.StoredItemTimes(prev); err == nil {
			created = prevCreated
		}
	}

	data, err := storage.EncodeItem(item, created, now)
	if err != nil {
		return err
	}
	b.items[item.ItemID()] = data
	return nil
}

// Get retrieves an item by identity; absence returns (nil, nil).
func (b *Backend) Get(ctx context.Context, id uuid.UUID) (core.MemoryItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrStorageClosed
	}

	data, ok := b.items[id]
	if !ok {
		return nil, nil
	}
	return storage.DecodeStoredItem(data)
}

// Delete removes an item; deleting an absent identity is not an error.
func (b *Backend) Delete(ctx context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return storage.ErrStorageClosed
	}
	delete(b.items, id)
	return nil
}

// Query performs a full scan applying the text filter, then the tag
// filter, then the limit. Results are ordered by ascending identity so
// repeated queries are stable.
func (b *Backend) Query(ctx context.Context, q core.Query) ([]core.MemoryItem, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	limit := storage.ResolveLimit(q)
	if limit == 0 {
		return nil, nil
	}

	items, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	matched := items[:0]
	for _, item := range items {
		if q.Matches(item) {
			matched = append(matched, item)
		}
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// VectorSearch is this backend's degraded capability mode: the
// embedding is ignored and every stored item is returned with
// DegradedScore, ordered by identity and capped at limit.
func (b *Backend) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	items, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	results := make([]storage.ScoredItem, 0, len(items))
	for _, item := range items {
		results = append(results, storage.ScoredItem{Item: item, Score: DegradedScore})
	}
	storage.SortScored(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// AddRelation is a no-op: this backend does not model graph structure.
func (b *Backend) AddRelation(ctx context.Context, from, to uuid.UUID, relationType string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return storage.ErrStorageClosed
	}
	return nil
}

// GetRelated always returns nothing: this backend does not model graph
// structure.
func (b *Backend) GetRelated(ctx context.Context, id uuid.UUID, relationType string) ([]core.MemoryItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrStorageClosed
	}
	return nil, nil
}

// Close discards all items.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.items = nil
	return nil
}

// snapshot decodes all items under the read lock, sorted by identity.
func (b *Backend) snapshot() ([]core.MemoryItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrStorageClosed
	}

	items := make([]core.MemoryItem, 0, len(b.items))
	for _, data := range b.items {
		item, err := storage.DecodeStoredItem(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ItemID().String() < items[j].ItemID().String()
	})
	return items, nil
}
