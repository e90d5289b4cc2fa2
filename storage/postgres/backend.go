// Package postgres provides the networked storage backend, built on
// PostgreSQL with the pgvector extension.
//
// Unlike the embedded backends, vector search here runs server side
// against an HNSW index, and the relation graph is queried with real
// joins. Sessions come from a pool.Native; the driver is asynchronous,
// so no worker bridge is involved.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/storage"
	"github.com/poiesic/gostash/storage/pool"
)

const (
	// DefaultVectorDim matches the output width of the common hosted
	// embedding models. The column dimension is fixed at schema
	// creation, so changing it on an existing database requires a
	// migration.
	DefaultVectorDim = 1536

	// DefaultPoolSize bounds concurrently live database sessions.
	DefaultPoolSize = 10
)

// Backend stores items in PostgreSQL.
type Backend struct {
	pool   *pool.Native
	logger *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*config)

type config struct {
	poolSize  int32
	vectorDim int
	logger    *slog.Logger
}

// WithPoolSize sets the maximum number of concurrent sessions.
func WithPoolSize(n int32) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithVectorDim sets the embedding column dimension used when the
// schema is first created.
func WithVectorDim(dim int) Option {
	return func(c *config) {
		if dim > 0 {
			c.vectorDim = dim
		}
	}
}

// WithLogger sets the backend logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open connects to the database, verifies reachability and applies the
// schema. Construction fails fast when the server cannot be reached.
func Open(ctx context.Context, databaseURL string, opts ...Option) (storage.Backend, error) {
	cfg := config{
		poolSize:  DefaultPoolSize,
		vectorDim: DefaultVectorDim,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	native, err := pool.NewNative(ctx, databaseURL,
		pool.WithMaxSessions(cfg.poolSize),
		pool.WithVectorTypes(),
		pool.WithNativeLogger(cfg.logger))
	if err != nil {
		return nil, err
	}

	if _, err := native.Pool().Exec(ctx, fmt.Sprintf(schemaSQL, cfg.vectorDim)); err != nil {
		native.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", storage.ErrConnectivity, err)
	}

	cfg.logger.Debug("opened postgres backend", "pool_size", cfg.poolSize, "vector_dim", cfg.vectorDim)

	return &Backend{pool: native, logger: cfg.logger}, nil
}

// Save inserts or replaces the item in one transaction, preserving the
// stored created_at of an existing row and refreshing updated_at.
func (b *Backend) Save(ctx context.Context, item core.MemoryItem) error {
	payload, err := item.MarshalItem()
	if err != nil {
		return fmt.Errorf("%w: encode item %s: %v", storage.ErrSerialization, item.ItemID(), err)
	}

	var embedding any
	if vec := storage.ItemVector(item); len(vec) > 0 {
		embedding = pgvector.NewVector(vec)
	}

	tags := core.MetadataTags(item)
	if tags == nil {
		tags = []string{}
	}

	created, now := storage.SaveTimes(item)

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, upsertItem,
		item.ItemID().String(), item.ItemType(), core.MetadataTitle(item),
		item.ItemContent(), tags, embedding, payload, created, now)
	if err != nil {
		return fmt.Errorf("save item %s: %w", item.ItemID(), err)
	}
	return nil
}

// Get returns the stored item, or (nil, nil) when no row exists.
func (b *Backend) Get(ctx context.Context, id uuid.UUID) (core.MemoryItem, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var (
		itemType         string
		payload          []byte
		created, updated time.Time
	)
	err = conn.QueryRow(ctx, selectItem, id.String()).Scan(&itemType, &payload, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return storage.StampedItem(itemType, payload, created, updated)
}

// Delete removes the item; relations referencing it cascade away.
// Deleting an absent item is not an error.
func (b *Backend) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "DELETE FROM items WHERE id = $1", id.String()); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// Query filters items by case-insensitive substring on title and
// content (ILIKE), and by tag containment evaluated with the array
// containment operator against the GIN index.
func (b *Backend) Query(ctx context.Context, q core.Query) ([]core.MemoryItem, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	limit := storage.ResolveLimit(q)
	if limit == 0 {
		return nil, nil
	}

	sqlStr := "SELECT item_type, payload, created_at, updated_at FROM items"
	var (
		conds []string
		args  []any
	)
	if q.Text != "" {
		args = append(args, "%"+escapeLike(q.Text)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR content ILIKE $%d ESCAPE '\')`, n, n))
	}
	if len(q.Tags) > 0 {
		args = append(args, q.Tags)
		conds = append(conds, fmt.Sprintf("tags @> $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			sqlStr += " WHERE " + cond
		} else {
			sqlStr += " AND " + cond
		}
	}
	args = append(args, limit)
	sqlStr += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", len(args))

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// VectorSearch asks the server for the nearest stored embeddings by
// cosine distance and maps the distances onto the shared score scale.
func (b *Backend) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, selectNearest, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var scored []storage.ScoredItem
	for rows.Next() {
		var (
			itemType         string
			payload          []byte
			created, updated time.Time
			distance         float64
		)
		if err := rows.Scan(&itemType, &payload, &created, &updated, &distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		item, err := storage.StampedItem(itemType, payload, created, updated)
		if err != nil {
			return nil, err
		}
		scored = append(scored, storage.ScoredItem{
			Item:  item,
			Score: storage.DistanceScore(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return scored, nil
}

// AddRelation records a typed edge between two stored items. Both
// endpoints are verified inside the same transaction as the insert, so
// a concurrent delete cannot leave a dangling edge. Recording the same
// edge twice is a no-op.
func (b *Backend) AddRelation(ctx context.Context, from, to uuid.UUID, relationType string) error {
	edge := core.RelationEdge{From: from, To: to, Type: relationType}
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin relation tx: %v", storage.ErrConnectivity, err)
	}
	defer tx.Rollback(ctx)

	for _, endpoint := range []struct {
		role string
		id   uuid.UUID
	}{{"source", from}, {"target", to}} {
		var one int
		err := tx.QueryRow(ctx, "SELECT 1 FROM items WHERE id = $1", endpoint.id.String()).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: relation %s item %s", storage.ErrNotFound, endpoint.role, endpoint.id)
		}
		if err != nil {
			return fmt.Errorf("check relation %s: %w", endpoint.role, err)
		}
	}

	if _, err := tx.Exec(ctx, insertRelation, from.String(), to.String(), relationType); err != nil {
		return fmt.Errorf("insert relation %s: %w", edge.Tuple(), err)
	}
	return tx.Commit(ctx)
}

// GetRelated returns the items the given item points at, joined
// through the relations table. An empty relationType matches edges of
// every type.
func (b *Backend) GetRelated(ctx context.Context, id uuid.UUID, relationType string) ([]core.MemoryItem, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, selectRelated, id.String(), relationType)
	if err != nil {
		return nil, fmt.Errorf("get related for %s: %w", id, err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// Close tears down the session pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func scanItems(rows pgx.Rows) ([]core.MemoryItem, error) {
	var items []core.MemoryItem
	for rows.Next() {
		var (
			itemType         string
			payload          []byte
			created, updated time.Time
		)
		if err := rows.Scan(&itemType, &payload, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item, err := storage.StampedItem(itemType, payload, created, updated)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return items, nil
}

// escapeLike escapes ILIKE wildcards so query text matches literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
