package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/storage"
)

// Integration tests need a running PostgreSQL with the pgvector
// extension available, for example:
//
//	docker run -e POSTGRES_PASSWORD=pw -p 5432:5432 pgvector/pgvector:pg17
//	TEST_DATABASE_URL=postgres://postgres:pw@localhost:5432/postgres go test ./storage/postgres/
func openTestBackend(t *testing.T) storage.Backend {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	backend, err := Open(context.Background(), url, WithVectorDim(3))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	snippet := core.NewSnippet("Postgres arrays", "tags live in a TEXT[] column", "postgres", "arrays")
	snippet.Vector = []float32{0.1, 0.2, 0.3}
	require.NoError(t, backend.Save(ctx, snippet))
	defer backend.Delete(ctx, snippet.Id)

	got, err := backend.Get(ctx, snippet.Id)
	require.NoError(t, err)
	require.NotNil(t, got)

	retrieved, ok := got.(*core.Snippet)
	require.True(t, ok, "expected *core.Snippet, got %T", got)
	assert.Equal(t, snippet.Id, retrieved.Id)
	assert.Equal(t, "Postgres arrays", retrieved.Title)
	assert.Equal(t, []string{"postgres", "arrays"}, retrieved.Tags)
	assert.Equal(t, snippet.Vector, retrieved.Vector)
	assert.False(t, retrieved.Created.IsZero())
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

	snippet := core.NewSnippet("Versioned", "first")
	require.NoError(t, backend.Save(ctx, snippet))
	defer backend.Delete(ctx, snippet.Id)

	first, err := backend.Get(ctx, snippet.Id)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	snippet.Contents = "second"
	require.NoError(t, backend.Save(ctx, snippet))

	second, err := backend.Get(ctx, snippet.Id)
	require.NoError(t, err)
	assert.Equal(t, "second", second.ItemContent())
	assert.True(t, second.ItemCreatedAt().Equal(first.ItemCreatedAt()))
	assert.True(t, second.ItemUpdatedAt().After(first.ItemUpdatedAt()))
}

func TestQueryFilters(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	marker := core.NewID().String()[:8]
	seed := []*core.Snippet{
		core.NewSnippet("Indexing "+marker, "btree and gin", "pg-"+marker),
		core.NewSnippet("Vacuum "+marker, "dead tuples", "pg-"+marker, "maint-"+marker),
	}
	for _, s := range seed {
		require.NoError(t, backend.Save(ctx, s))
		defer backend.Delete(ctx, s.Id)
	}

	items, err := backend.Query(ctx, core.QueryText("vacuum "+marker))
	require.NoError(t, err)
	require.Len(t, items, 1, "ILIKE is case-insensitive")

	items, err = backend.Query(ctx, core.QueryTags("pg-"+marker))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = backend.Query(ctx, core.QueryTags("pg-"+marker, "maint-"+marker))
	require.NoError(t, err)
	assert.Len(t, items, 1, "containment requires every tag")

	items, err = backend.Query(ctx, core.QueryTags("pg-"+marker).WithLimit(1))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = backend.Query(ctx, core.QueryTags("pg-"+marker).WithLimit(0))
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = backend.Query(ctx, core.Query{}.WithLimit(-1))
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestVectorSearchViaIndex(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	near := core.NewSnippet("Near", "aligned")
	near.Vector = []float32{1, 0, 0}
	far := core.NewSnippet("Far", "opposed")
	far.Vector = []float32{-1, 0, 0}
	for _, s := range []*core.Snippet{far, near} {
		require.NoError(t, backend.Save(ctx, s))
		defer backend.Delete(ctx, s.Id)
	}

	results, err := backend.VectorSearch(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)

	assert.Equal(t, near.Id, results[0].Item.ItemID())
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Greater(t, results[0].Score, results[len(results)-1].Score)

	none, err := backend.VectorSearch(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRelations(t *testing.T) {
	backend := openTestBackend(t)
	ctx := context.Background()

	parent := core.NewSnippet("Parent", "graph root")
	childA := core.NewSnippet("Child A", "first")
	childB := core.NewSnippet("Child B", "second")
	for _, s := range []*core.Snippet{parent, childA, childB} {
		require.NoError(t, backend.Save(ctx, s))
		defer backend.Delete(ctx, s.Id)
	}

	require.NoError(t, backend.AddRelation(ctx, parent.Id, childA.Id, "contains"))
	require.NoError(t, backend.AddRelation(ctx, parent.Id, childB.Id, "references"))
	require.NoError(t, backend.AddRelation(ctx, parent.Id, childA.Id, "contains"),
		"duplicate edge is a no-op")

	related, err := backend.GetRelated(ctx, parent.Id, "contains")
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, childA.Id, related[0].ItemID())

	all, err := backend.GetRelated(ctx, parent.Id, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	missing := core.NewID()
	err = backend.AddRelation(ctx, parent.Id, missing, "contains")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), missing.String())

	// Deleting an endpoint cascades its edges away.
	require.NoError(t, backend.Delete(ctx, childA.Id))
	related, err = backend.GetRelated(ctx, parent.Id, "contains")
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestOpenBadURL(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	_, err := Open(context.Background(), "postgres://nobody@127.0.0.1:1/none?connect_timeout=1")
	assert.ErrorIs(t, err, storage.ErrConnectivity)
}
