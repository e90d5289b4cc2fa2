package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gostash/core"
)

func TestVectorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "nil", vector: nil},
		{name: "empty", vector: []float32{}},
		{name: "single", vector: []float32{0.5}},
		{name: "typical", vector: []float32{0.1, -0.2, 0.3, 0.99999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalVector(tt.vector)
			got, err := UnmarshalVector(data)
			require.NoError(t, err)
			if len(tt.vector) == 0 {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.vector, got)
		})
	}
}

func TestUnmarshalVector_Garbage(t *testing.T) {
	_, err := UnmarshalVector([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestEncodeDecodeStoredItem(t *testing.T) {
	snippet := core.NewSnippet("Envelope", "payload body", "a", "b")
	snippet.Vector = []float32{0.1, 0.2}

	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	updated := time.Now().UTC().Truncate(time.Microsecond)

	data, err := EncodeItem(snippet, created, updated)
	require.NoError(t, err)

	got, err := DecodeStoredItem(data)
	require.NoError(t, err)

	// The stamped times override whatever the item itself serialized.
	assert.True(t, got.ItemCreatedAt().Equal(created), "created: %v vs %v", got.ItemCreatedAt(), created)
	assert.True(t, got.ItemUpdatedAt().Equal(updated), "updated: %v vs %v", got.ItemUpdatedAt(), updated)

	decoded, ok := got.(*core.Snippet)
	require.True(t, ok, "expected *core.Snippet, got %T", got)
	assert.Equal(t, snippet.Id, decoded.Id)
	assert.Equal(t, snippet.Title, decoded.Title)
	assert.Equal(t, snippet.Contents, decoded.Contents)
	assert.Equal(t, snippet.Tags, decoded.Tags)
	assert.Equal(t, snippet.Vector, decoded.Vector)
}

func TestStoredItemTimes(t *testing.T) {
	snippet := core.NewSnippet("Times", "body")
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(time.Minute)

	data, err := EncodeItem(snippet, created, updated)
	require.NoError(t, err)

	gotCreated, gotUpdated, err := StoredItemTimes(data)
	require.NoError(t, err)
	assert.True(t, gotCreated.Equal(created))
	assert.True(t, gotUpdated.Equal(updated))
}

func TestDecodeStoredItem_UnknownType(t *testing.T) {
	_, err := StampedItem("mystery", []byte(`{}`), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrSerialization)
}
