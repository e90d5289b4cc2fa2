// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/poiesic/gostash/core"
)

var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

// MarshalVector serializes an embedding vector to an opaque blob.
// A nil or empty vector serializes to nil.
func MarshalVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, vectorMUS.Size(v))
	vectorMUS.Marshal(v, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from a blob
// produced by MarshalVector.
func UnmarshalVector(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v, _, err := vectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector: %v", ErrSerialization, err)
	}
	return v, nil
}

// itemEnvelope wraps an item's self-serialized payload with the
// discriminator and the storage-owned timestamps. Backends without
// native columns for these fields (in-memory, BadgerDB) persist the
// whole envelope.
type itemEnvelope struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Payload   []byte    `json:"payload"`
}

// EncodeItem serializes an item into an envelope carrying the given
// storage-owned timestamps.
func EncodeItem(item core.MemoryItem, created, updated time.Time) ([]byte, error) {
	payload, err := item.MarshalItem()
	if err != nil {
		return nil, fmt.Errorf("%w: item %s: %v", ErrSerialization, item.ItemID(), err)
	}
	data, err := json.Marshal(itemEnvelope{
		Type:      item.ItemType(),
		CreatedAt: created,
		UpdatedAt: updated,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: item %s: %v", ErrSerialization, item.ItemID(), err)
	}
	return data, nil
}

// DecodeStoredItem reconstructs an item from an envelope produced by
// EncodeItem, stamping the persisted timestamps back onto items that
// support it.
func DecodeStoredItem(data []byte) (core.MemoryItem, error) {
	var env itemEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrSerialization, err)
	}
	return StampedItem(env.Type, env.Payload, env.CreatedAt, env.UpdatedAt)
}

// StoredItemTimes reads just the timestamps from an encoded envelope.
// Save paths use it to preserve the creation time across upserts
// without decoding the payload.
func StoredItemTimes(data []byte) (created, updated time.Time, err error) {
	var env itemEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: envelope: %v", ErrSerialization, err)
	}
	return env.CreatedAt, env.UpdatedAt, nil
}

// StampedItem decodes a payload through the item type registry and
// applies the storage-owned timestamps to items implementing
// core.Stampable.
func StampedItem(itemType string, payload []byte, created, updated time.Time) (core.MemoryItem, error) {
	item, err := core.DecodeItem(itemType, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if s, ok := item.(core.Stampable); ok {
		s.StampTimes(created, updated)
	}
	return item, nil
}

// SaveTimes computes the storage-owned timestamps for a save: the
// item's creation time (or now, for items that never carried one) and
// a fresh update time. Callers overwrite created with the previously
// stored value when the item already exists.
func SaveTimes(item core.MemoryItem) (created, updated time.Time) {
	updated = time.Now().UTC()
	created = item.ItemCreatedAt().UTC()
	if created.IsZero() {
		created = updated
	}
	return created, updated
}

// ItemVector returns the embedding vector of items that carry one.
func ItemVector(item core.MemoryItem) []float32 {
	if v, ok := item.(core.Vectorized); ok {
		return v.EmbeddingVector()
	}
	return nil
}
