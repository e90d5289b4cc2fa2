package gostash

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gostash/core"
	"github.com/poiesic/gostash/storage"
)

func TestOpenBackendDispatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		url  string
	}{
		{"memory scheme", "memory:"},
		{"sqlite scheme", "sqlite:" + filepath.Join(dir, "a.db")},
		{"sqlite double slash scheme", "sqlite://" + filepath.Join(dir, "b.db")},
		{"bare db path", filepath.Join(dir, "c.db")},
		{"badger scheme", "badger://" + filepath.Join(dir, "kv")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend, err := OpenBackend(ctx, tc.url, 0, nil)
			require.NoError(t, err)
			require.NotNil(t, backend)

			// The handle must be usable, whatever is behind it.
			snippet := core.NewSnippet("Probe", "backend dispatch works")
			require.NoError(t, backend.Save(ctx, snippet))
			got, err := backend.Get(ctx, snippet.Id)
			require.NoError(t, err)
			require.NotNil(t, got)

			assert.NoError(t, backend.Close())
		})
	}
}

func TestOpenBackendUnknownScheme(t *testing.T) {
	_, err := OpenBackend(context.Background(), "redis://localhost:6379", 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv(configEnvVar, filepath.Join(t.TempDir(), "nested", "stashes.yaml"))

	// A missing file is an empty registry, not an error.
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Stashes)

	cfg.DefaultStash = "notes"
	cfg.Stashes["notes"] = StashConfig{
		ServiceType: ServiceSnippet,
		DatabaseURL: "memory:",
	}
	cfg.Stashes["docs"] = StashConfig{
		ServiceType: ServiceRAG,
		DatabaseURL: "postgres://localhost/docs",
		MaxPoolSize: 4,
	}
	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "notes", loaded.DefaultStash)
	assert.Equal(t, cfg.Stashes, loaded.Stashes)
}

func TestOpenStash(t *testing.T) {
	t.Setenv(configEnvVar, filepath.Join(t.TempDir(), "stashes.yaml"))

	require.NoError(t, SaveConfig(&Config{
		DefaultStash: "scratch",
		Stashes: map[string]StashConfig{
			"scratch": {ServiceType: ServiceSnippet, DatabaseURL: "memory:"},
		},
	}))

	ctx := context.Background()

	stash, err := OpenStash(ctx, "scratch", nil)
	require.NoError(t, err)
	assert.Equal(t, "scratch", stash.Name)
	assert.Equal(t, ServiceSnippet, stash.Config.ServiceType)
	require.NoError(t, stash.Close())

	// Empty name falls back to the default stash.
	stash, err = OpenStash(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "scratch", stash.Name)
	require.NoError(t, stash.Close())

	_, err = OpenStash(ctx, "nope", nil)
	assert.ErrorIs(t, err, storage.ErrValidation)
}
