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


// Package storage provides the storage abstraction layer for gostash.
//
// This package defines the Backend interface that decouples the
// physical store from callers. Different backends (in-memory, SQLite,
// PostgreSQL, BadgerDB) are used interchangeably and are selected at
// runtime from configuration.
//
// # Constructor Return Type Pattern
//
// Backend packages follow a "return interface" pattern for public
// constructors to enforce abstraction:
//
//	backend, err := sqlite.New(path)  // returns storage.Backend
//
// # Operations
//
// Every backend implements the same seven operations: Save (upsert by
// identity), Get (exact lookup, absence is not an error), Delete
// (idempotent), Query (filtered listing), VectorSearch (nearest
// neighbor), AddRelation and GetRelated (graph edges). Backends that
// cannot truly perform an operation either return ErrUnsupported or
// document a degraded mode; they never silently present degraded
// results as real ones.
//
// # Error Kinds
//
// All failures are reported as errors wrapping one of the sentinel
// kinds in this package (ErrConnectivity, ErrPoolExhausted,
// ErrNotFound, ErrSerialization, ErrValidation, ErrUnsupported,
// ErrStorageClosed). Test with errors.Is. No operation retries
// internally; retry policy belongs to the caller.
//
// # Thread Safety
//
// All backend implementations must be thread-safe and support
// concurrent access from multiple goroutines. The backing session pool
// is the only shared mutable resource; a session handed out by a pool
// is exclusively owned by one caller until released.
package storage
