// Package sqlite provides an embedded file-backed storage backend.
//
// The backend runs on a single SQLite database file in WAL mode. The
// underlying driver is synchronous, so every operation is dispatched
// through a pool.Bridge session; the bridge bounds the number of
// statements in flight to the pool size.
//
// Vector search is a full scan over stored embeddings scored in
// process. There is no vector index, so it is suitable for the
// collection sizes an embedded database is meant for.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/storage"
	"github.com/poiesic/gostash/storage/pool"
)

const (
	// DefaultPoolSize bounds concurrent statements against the
	// database file. WAL mode allows concurrent readers but only a
	// single writer, so a small pool is enough.
	DefaultPoolSize = 4

	timeLayout = time.RFC3339Nano
)

// Backend stores items in a SQLite database file.
type Backend struct {
	db     *sql.DB
	bridge *pool.Bridge
	logger *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*config)

type config struct {
	poolSize int
	logger   *slog.Logger
}

// WithPoolSize sets the maximum number of concurrent operations.
func WithPoolSize(n int) Option {
	return func(c *config) {
		c.poolSize = n
	}
}

// WithLogger sets the backend logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Open opens (creating if necessary) the database at path and applies
// the schema. The parent directory is created if it does not exist.
// Pass ":memory:" for an in-process database; in that mode the pool is
// forced to a single session because each SQLite connection would
// otherwise see its own private memory database.
func Open(path string, opts ...Option) (storage.Backend, error) {
	cfg := config{
		poolSize: DefaultPoolSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.poolSize < 1 {
		cfg.poolSize = 1
	}

	const pragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	dsn := ""
	if path == ":memory:" {
		// A bare :memory: DSN gives every connection its own private
		// database and loses the pragmas. A uniquely named shared-cache
		// memory database keeps the data alive across connection
		// recycling and keeps foreign keys enforced.
		cfg.poolSize = 1
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared&" + pragmas
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("%w: create database directory: %v", storage.ErrConnectivity, err)
			}
		}
		dsn = "file:" + path + "?" + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", storage.ErrConnectivity, path, err)
	}
	db.SetMaxOpenConns(cfg.poolSize)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", storage.ErrConnectivity, err)
	}

	bridge, err := pool.NewBridge(cfg.poolSize, pool.WithLogger(cfg.logger))
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.logger.Debug("opened sqlite backend", "path", path, "pool_size", cfg.poolSize)

	return &Backend{
		db:     db,
		bridge: bridge,
		logger: cfg.logger,
	}, nil
}

// run acquires a bridge session and executes fn on a pool worker.
func (b *Backend) run(ctx context.Context, fn func() error) error {
	session, err := b.bridge.Acquire(ctx)
	if err != nil {
		return err
	}
	defer session.Release()
	return session.Run(ctx, fn)
}

// Save inserts or replaces the item. The stored created_at of an
// existing row is preserved; updated_at is always refreshed.
func (b *Backend) Save(ctx context.Context, item core.MemoryItem) error {
	payload, err := item.MarshalItem()
	if err != nil {
		return fmt.Errorf("%w: encode item %s: %v", storage.ErrSerialization, item.ItemID(), err)
	}

	embedding := storage.MarshalVector(storage.ItemVector(item))

	tags := core.MetadataTags(item)
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("%w: encode tags: %v", storage.ErrSerialization, err)
	}

	created, now := storage.SaveTimes(item)

	return b.run(ctx, func() error {
		_, err := b.db.ExecContext(ctx, upsertItem,
			item.ItemID().String(), item.ItemType(), core.MetadataTitle(item),
			item.ItemContent(), string(tagsJSON), embedding, payload,
			created.Format(timeLayout), now.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("save item %s: %w", item.ItemID(), err)
		}
		return nil
	})
}

// Get returns the stored item, or (nil, nil) when no row exists.
func (b *Backend) Get(ctx context.Context, id uuid.UUID) (core.MemoryItem, error) {
	var item core.MemoryItem
	err := b.run(ctx, func() error {
		var (
			itemType               string
			payload                []byte
			createdRaw, updatedRaw string
		)
		row := b.db.QueryRowContext(ctx, selectItem, id.String())
		if err := row.Scan(&itemType, &payload, &createdRaw, &updatedRaw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("get item %s: %w", id, err)
		}
		decoded, err := decodeRow(itemType, payload, createdRaw, updatedRaw)
		if err != nil {
			return err
		}
		item = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes the item and, via foreign keys, every relation that
// references it. Deleting an absent item is not an error.
func (b *Backend) Delete(ctx context.Context, id uuid.UUID) error {
	return b.run(ctx, func() error {
		_, err := b.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id.String())
		if err != nil {
			return fmt.Errorf("delete item %s: %w", id, err)
		}
		return nil
	})
}

// Query filters items by substring on title and content, then by tag
// containment. Substring matching runs in SQL via LIKE; the tag filter
// is applied in process against the stored tag list.
func (b *Backend) Query(ctx context.Context, q core.Query) ([]core.MemoryItem, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	limit := storage.ResolveLimit(q)
	if limit == 0 {
		return nil, nil
	}

	sqlStr := "SELECT item_type, payload, created_at, updated_at, tags FROM items"
	var args []any
	if q.Text != "" {
		sqlStr += " WHERE (title LIKE ? ESCAPE '\\' OR content LIKE ? ESCAPE '\\')"
		pattern := "%" + escapeLike(q.Text) + "%"
		args = append(args, pattern, pattern)
	}
	sqlStr += " ORDER BY rowid"

	var items []core.MemoryItem
	err := b.run(ctx, func() error {
		rows, err := b.db.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return fmt.Errorf("query items: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				itemType               string
				payload                []byte
				createdRaw, updatedRaw string
				tagsRaw                string
			)
			if err := rows.Scan(&itemType, &payload, &createdRaw, &updatedRaw, &tagsRaw); err != nil {
				return fmt.Errorf("scan item: %w", err)
			}
			if len(q.Tags) > 0 {
				var tags []string
				if err := json.Unmarshal([]byte(tagsRaw), &tags); err != nil {
					return fmt.Errorf("%w: decode tags: %v", storage.ErrSerialization, err)
				}
				if !containsAll(tags, q.Tags) {
					continue
				}
			}
			item, err := decodeRow(itemType, payload, createdRaw, updatedRaw)
			if err != nil {
				return err
			}
			items = append(items, item)
			if len(items) == limit {
				break
			}
		}
		return rows.Err()
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
	err := b.run(ctx, func() error {
		rows, err := b.db.QueryContext(ctx, selectEmbedded)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				itemType               string
				payload                []byte
				createdRaw, updatedRaw string
				blob                   []byte
			)
			if err := rows.Scan(&itemType, &payload, &createdRaw, &updatedRaw, &blob); err != nil {
				return fmt.Errorf("scan embedding: %w", err)
			}
			vec, err := storage.UnmarshalVector(blob)
			if err != nil {
				return err
			}
			if len(vec) == 0 {
				continue
			}
			item, err := decodeRow(itemType, payload, createdRaw, updatedRaw)
			if err != nil {
				return err
			}
			scored = append(scored, storage.ScoredItem{
				Item:  item,
				Score: storage.SimilarityScore(storage.Cosine(embedding, vec)),
			})
		}
		return rows.Err()
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
// endpoints must exist; the check and the insert run in one
// transaction. Recording the same edge twice is a no-op.
func (b *Backend) AddRelation(ctx context.Context, from, to uuid.UUID, relationType string) error {
	edge := core.RelationEdge{From: from, To: to, Type: relationType}
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}

	return b.run(ctx, func() error {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: begin relation tx: %v", storage.ErrConnectivity, err)
		}
		defer tx.Rollback()

		for _, endpoint := range []struct {
			role string
			id   uuid.UUID
		}{{"source", from}, {"target", to}} {
			var one int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM items WHERE id = ?", endpoint.id.String()).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: relation %s item %s", storage.ErrNotFound, endpoint.role, endpoint.id)
			}
			if err != nil {
				return fmt.Errorf("check relation %s: %w", endpoint.role, err)
			}
		}

		if _, err := tx.ExecContext(ctx, insertRelation, from.String(), to.String(), relationType); err != nil {
			return fmt.Errorf("insert relation %s: %w", edge.Tuple(), err)
		}
		return tx.Commit()
	})
}

// GetRelated returns the items the given item points at. An empty
// relationType matches edges of every type.
func (b *Backend) GetRelated(ctx context.Context, id uuid.UUID, relationType string) ([]core.MemoryItem, error) {
	sqlStr := selectRelated
	args := []any{id.String()}
	if relationType != "" {
		sqlStr += " AND r.relation_type = ?"
		args = append(args, relationType)
	}
	sqlStr += " ORDER BY i.rowid"

	var items []core.MemoryItem
	err := b.run(ctx, func() error {
		rows, err := b.db.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return fmt.Errorf("get related for %s: %w", id, err)
		}
		defer rows.Close()

		var scanErr error
		items, scanErr = scanItems(rows)
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FullTextSearch runs an FTS5 match over title, content and tags and
// returns items in relevance order. The query uses FTS5 match syntax,
// so bare words, quoted phrases and boolean operators all work.
func (b *Backend) FullTextSearch(ctx context.Context, match string, limit int) ([]core.MemoryItem, error) {
	if limit <= 0 {
		limit = storage.DefaultQueryLimit
	}

	var items []core.MemoryItem
	err := b.run(ctx, func() error {
		rows, err := b.db.QueryContext(ctx, selectFullText, match, limit)
		if err != nil {
			return fmt.Errorf("full text search: %w", err)
		}
		defer rows.Close()

		var scanErr error
		items, scanErr = scanItems(rows)
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Close releases the bridge pool and closes the database.
func (b *Backend) Close() error {
	b.bridge.Close()
	return b.db.Close()
}

func scanItems(rows *sql.Rows) ([]core.MemoryItem, error) {
	var items []core.MemoryItem
	for rows.Next() {
		var (
			itemType               string
			payload                []byte
			createdRaw, updatedRaw string
		)
		if err := rows.Scan(&itemType, &payload, &createdRaw, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item, err := decodeRow(itemType, payload, createdRaw, updatedRaw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func decodeRow(itemType string, payload []byte, createdRaw, updatedRaw string) (core.MemoryItem, error) {
	created, err := time.Parse(timeLayout, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse created_at: %v", storage.ErrSerialization, err)
	}
	updated, err := time.Parse(timeLayout, updatedRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse updated_at: %v", storage.ErrSerialization, err)
	}
	return storage.StampedItem(itemType, payload, created, updated)
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// escapeLike escapes LIKE wildcards so query text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
