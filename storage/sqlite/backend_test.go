package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/storage"
)

func openTestBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := Open(filepath.Join(t.TempDir(), "stash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "stash.db")
	backend, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, backend.Close())
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	snippet := core.NewSnippet("SQL basics", "SELECT reads rows", "sql", "db")
	snippet.Vector = []float32{0.1, 0.2, 0.3}
	require.NoError(t, backend.Save(ctx, snippet))

	got, err := backend.Get(ctx, snippet.Id)
	require.NoError(t, err)
	require.NotNil(t, got)

	retrieved, ok := got.(*core.Snippet)
	require.True(t, ok, "expected *core.Snippet, got %T", got)
	assert.Equal(t, snippet.Id, retrieved.Id)
	assert.Equal(t, "SQL basics", retrieved.Title)
	assert.Equal(t, "SELECT reads rows", retrieved.Contents)
	assert.Equal(t, []string{"sql", "db"}, retrieved.Tags)
	assert.Equal(t, snippet.Vector, retrieved.Vector)
	assert.False(t, retrieved.Created.IsZero())
	assert.False(t, retrieved.Updated.IsZero())
}

func TestGetAbsent(t *testing.T) {
	backend := openTestBackend(t)

	got, err := backend.Get(context.Background(), core.NewID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveUpsertPreservesCreation(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	snippet := core.NewSnippet("Original", "first version")
	require.NoError(t, backend.Save(ctx, snippet))

	first, err := backend.Get(ctx, snippet.Id)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	snippet.Contents = "second version"
	require.NoError(t, backend.Save(ctx, snippet))

	second, err := backend.Get(ctx, snippet.Id)
	require.NoError(t, err)
	assert.Equal(t, "second version", second.ItemContent())
	assert.True(t, second.ItemCreatedAt().Equal(first.ItemCreatedAt()),
		"created_at must survive upserts")
	assert.True(t, second.ItemUpdatedAt().After(first.ItemUpdatedAt()),
		"updated_at must advance on upserts")
}

func TestDeleteIsIdempotent(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	snippet := core.NewSnippet("Goner", "bye")
	require.NoError(t, backend.Save(ctx, snippet))
	require.NoError(t, backend.Delete(ctx, snippet.Id))

	got, err := backend.Get(ctx, snippet.Id)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, backend.Delete(ctx, snippet.Id))
	assert.NoError(t, backend.Delete(ctx, core.NewID()))
}

func TestQueryFilters(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	seed := []*core.Snippet{
		core.NewSnippet("Rust ownership", "borrow checker rules", "rust"),
		core.NewSnippet("Go channels", "share memory by communicating", "go", "concurrency"),
		core.NewSnippet("Go errors", "errors are values", "go"),
	}
	for _, s := range seed {
		require.NoError(t, backend.Save(ctx, s))
	}

	tests := []struct {
		name  string
		query core.Query
		want  int
	}{
		{"no filter returns everything", core.Query{}, 3},
		{"text matches content", core.QueryText("borrow"), 1},
		{"text match is case-insensitive via LIKE", core.QueryText("go"), 2},
		{"single tag", core.QueryTags("go"), 2},
		{"all tags must match", core.QueryTags("go", "concurrency"), 1},
		{"text and tags combine", core.QueryText("channels").WithTags("go"), 1},
		{"limit caps results", core.Query{}.WithLimit(2), 2},
		{"zero limit returns nothing", core.Query{}.WithLimit(0), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, err := backend.Query(ctx, tc.query)
			require.NoError(t, err)
			assert.Len(t, items, tc.want)
		})
	}
}

func TestQueryLikeWildcardsAreLiteral(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, core.NewSnippet("Discount", "100% off today")))
	require.NoError(t, backend.Save(ctx, core.NewSnippet("Plain", "nothing special")))

	items, err := backend.Query(ctx, core.QueryText("100% off"))
	require.NoError(t, err)
	require.Len(t, items, 1)

	// A bare % must not act as a match-everything wildcard.
	items, err = backend.Query(ctx, core.QueryText("%"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestQueryNegativeLimit(t *testing.T) {
	backend := openTestBackend(t)

	_, err := backend.Query(context.Background(), core.Query{}.WithLimit(-1))
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestVectorSearchOrdersBySimilarity(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	near := core.NewSnippet("Near", "almost aligned")
	near.Vector = []float32{1, 0.1, 0}
	far := core.NewSnippet("Far", "opposite direction")
	far.Vector = []float32{-1, 0, 0}
	unembedded := core.NewSnippet("No vector", "never indexed")

	for _, s := range []*core.Snippet{far, near, unembedded} {
		require.NoError(t, backend.Save(ctx, s))
	}

	results, err := backend.VectorSearch(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2, "items without embeddings are skipped")

	assert.Equal(t, near.Id, results[0].Item.ItemID())
	assert.Equal(t, far.Id, results[1].Item.ItemID())
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[0].Score, float32(0))
	assert.LessOrEqual(t, results[0].Score, float32(1))

	capped, err := backend.VectorSearch(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)

	none, err := backend.VectorSearch(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRelations(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	parent := core.NewSnippet("Parent", "root of the graph")
	childA := core.NewSnippet("Child A", "first child")
	childB := core.NewSnippet("Child B", "second child")
	for _, s := range []*core.Snippet{parent, childA, childB} {
		require.NoError(t, backend.Save(ctx, s))
	}

	require.NoError(t, backend.AddRelation(ctx, parent.Id, childA.Id, "contains"))
	require.NoError(t, backend.AddRelation(ctx, parent.Id, childB.Id, "references"))

	// Repeating an edge is a no-op, not an error.
	require.NoError(t, backend.AddRelation(ctx, parent.Id, childA.Id, "contains"))

	related, err := backend.GetRelated(ctx, parent.Id, "contains")
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, childA.Id, related[0].ItemID())

	all, err := backend.GetRelated(ctx, parent.Id, "")
	require.NoError(t, err)
	assert.Len(t, all, 2, "empty type matches every edge")

	none, err := backend.GetRelated(ctx, childA.Id, "contains")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAddRelationValidatesEndpoints(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	stored := core.NewSnippet("Stored", "exists")
	require.NoError(t, backend.Save(ctx, stored))
	missing := core.NewID()

	err := backend.AddRelation(ctx, stored.Id, missing, "contains")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), missing.String(), "error names the missing endpoint")

	err = backend.AddRelation(ctx, missing, stored.Id, "contains")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = backend.AddRelation(ctx, stored.Id, stored.Id, "")
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestDeleteCascadesRelations(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	from := core.NewSnippet("From", "edge source")
	to := core.NewSnippet("To", "edge target")
	require.NoError(t, backend.Save(ctx, from))
	require.NoError(t, backend.Save(ctx, to))
	require.NoError(t, backend.AddRelation(ctx, from.Id, to.Id, "contains"))

	require.NoError(t, backend.Delete(ctx, to.Id))

	related, err := backend.GetRelated(ctx, from.Id, "contains")
	require.NoError(t, err)
	assert.Empty(t, related, "edges to deleted items disappear with them")
}

func TestMemoryModeEnforcesForeignKeys(t *testing.T) {
	// The in-process database must carry the same pragmas as the file
	// DSN: deleting an item still cascades its relation rows.
	backend, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	ctx := context.Background()

	from := core.NewSnippet("From", "edge source")
	to := core.NewSnippet("To", "edge target")
	require.NoError(t, backend.Save(ctx, from))
	require.NoError(t, backend.Save(ctx, to))
	require.NoError(t, backend.AddRelation(ctx, from.Id, to.Id, "contains"))

	require.NoError(t, backend.Delete(ctx, to.Id))

	related, err := backend.GetRelated(ctx, from.Id, "contains")
	require.NoError(t, err)
	assert.Empty(t, related, "edges to deleted items disappear with them")

	// The database survives connection churn across operations.
	got, err := backend.Get(ctx, from.Id)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestFullTextSearch(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, core.NewSnippet("Indexing", "inverted index structures", "search")))
	require.NoError(t, backend.Save(ctx, core.NewSnippet("Caching", "LRU eviction policies", "memory")))

	fts, ok := backend.(*Backend)
	require.True(t, ok)

	items, err := fts.FullTextSearch(ctx, "inverted", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Indexing", items[0].(*core.Snippet).Title)

	// Tags are part of the indexed document.
	items, err = fts.FullTextSearch(ctx, "memory", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Caching", items[0].(*core.Snippet).Title)
}

func TestClosedBackend(t *testing.T) {
	backend := openTestBackend(t)
	require.NoError(t, backend.Close())

	err := backend.Save(context.Background(), core.NewSnippet("late", "too late"))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
