package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryItem is the capability contract every storable value must
// satisfy. All methods are pure accessors over a validly constructed
// value; implementations must not perform I/O or fail.
type MemoryItem interface {
	// ItemID returns the unique identifier. Identity is immutable after
	// creation.
	ItemID() uuid.UUID

	// ItemType returns the type discriminator used to select a decoder
	// when the item is read back from storage.
	ItemType() string

	// ItemContent returns the primary textual content.
	ItemContent() string

	// ItemMetadata returns loosely typed metadata. Variants that carry a
	// title or tags expose them under the "title" and "tags" keys.
	ItemMetadata() map[string]any

	// ItemCreatedAt returns when the item was created.
	ItemCreatedAt() time.Time

	// ItemUpdatedAt returns when the item was last updated.
	ItemUpdatedAt() time.Time

	// MarshalItem serializes the item so that it can be stored by a
	// backend that has no static knowledge of the concrete type.
	MarshalItem() ([]byte, error)
}

// Vectorized is an optional capability for items that carry an
// embedding vector. Backends use it to populate the embedding column.
type Vectorized interface {
	EmbeddingVector() []float32
}

// Embeddable is an optional capability for items whose embedding
// vector can be replaced, for example when migrating a stash to a new
// embedding model.
type Embeddable interface {
	SetEmbeddingVector(v []float32)
}

// Stampable is an optional capability for items whose timestamps are
// owned by the storage layer. Backends stamp decoded items with the
// persisted creation and update times.
type Stampable interface {
	StampTimes(created, updated time.Time)
}

// DecodeFunc reconstructs a memory item from the bytes produced by
// MarshalItem.
type DecodeFunc func(data []byte) (MemoryItem, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DecodeFunc)
)

// RegisterItemType registers a decoder for an item type discriminator.
// Registering the same name twice panics, as does a nil decoder; both
// indicate a programming error.
func RegisterItemType(name string, decode DecodeFunc) {
	if name == "" {
		panic("core: item type name cannot be empty")
	}
	if decode == nil {
		panic("core: nil decoder for item type " + name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("core: item type registered twice: " + name)
	}
	registry[name] = decode
}

// DecodeItem reconstructs a memory item of the named type. Returns
// ErrUnknownItemType if no decoder is registered for the discriminator.
func DecodeItem(name string, data []byte) (MemoryItem, error) {
	registryMu.RLock()
	decode, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, name)
	}
	return decode(data)
}
