package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/poiesic/gostash/core"
)

// DefaultQueryLimit caps Query results when the caller leaves the
// limit unset.
const DefaultQueryLimit = 50

// ScoredItem pairs a memory item with a similarity score in [0,1],
// where 1.0 means identical.
type ScoredItem struct {
	Item  core.MemoryItem
	Score float32
}

// Backend is the uniform operation set every physical store
// implements. Implementations must be thread-safe; see the package
// documentation for the error-kind contract.
type Backend interface {
	// Save upserts an item by identity. Repeated saves of the same
	// identity succeed with last-write-wins semantics: content is
	// replaced, the creation timestamp is preserved, and the update
	// timestamp is refreshed.
	Save(ctx context.Context, item core.MemoryItem) error

	// Get retrieves an item by identity. Absence is not an error; both
	// return values are nil when the identity is unknown.
	Get(ctx context.Context, id uuid.UUID) (core.MemoryItem, error)

	// Delete removes an item by identity. Deleting an absent identity is
	// not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Query returns items matching the filter criteria, in a
	// backend-stable order. An explicit zero limit returns nothing; an
	// unset limit applies DefaultQueryLimit.
	Query(ctx context.Context, q core.Query) ([]core.MemoryItem, error)

	// VectorSearch returns up to limit items nearest to the given
	// embedding, sorted by descending score with ties broken by
	// ascending identity.
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]ScoredItem, error)

	// AddRelation creates a directed edge between two stored items. Both
	// endpoints must exist; the error names the first missing one.
	// Re-adding an existing (from, to, type) triple is a no-op.
	AddRelation(ctx context.Context, from, to uuid.UUID, relationType string) error

	// GetRelated returns the items reachable over outgoing edges from
	// id. An empty relationType matches edges of any type. The related
	// items are returned, not the edges.
	GetRelated(ctx context.Context, id uuid.UUID, relationType string) ([]core.MemoryItem, error)

	// Close tears down the backend and its session pool. The backend is
	// unusable afterwards.
	Close() error
}

// ResolveLimit translates a query's limit field into a concrete result
// cap: nil means DefaultQueryLimit, an explicit value is used as is.
func ResolveLimit(q core.Query) int {
	if q.Limit == nil {
		return DefaultQueryLimit
	}
	return *q.Limit
}
