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


// Package core defines the domain model for gostash: memory items,
// queries, and relation edges.
//
// # Memory Items
//
// A memory item is any entity stored through the storage contract. The
// MemoryItem interface is the minimal capability set every storable
// value must satisfy: identity, a type discriminator, textual content,
// loosely typed metadata, timestamps, and self-serialization.
//
// Concrete variants form a closed set that callers extend explicitly
// through the item type registry:
//
//	core.RegisterItemType("note", decodeNote)
//
// Backends never need static knowledge of a concrete item type; they
// persist the bytes produced by MarshalItem together with the
// discriminator returned by ItemType, and reconstruct values through
// DecodeItem. There is no runtime downcasting: optional capabilities
// (Vectorized, Stampable) are discovered with ordinary Go interface
// assertions.
//
// # Thread Safety
//
// Values in this package are plain data. They are safe for concurrent
// reads; callers own synchronization for mutation. The item type
// registry is safe for concurrent use.
package core
