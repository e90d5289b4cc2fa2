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

import "errors"

var (
	// ErrConnectivity indicates the physical store cannot be reached or
	// opened.
	ErrConnectivity = errors.New("store unreachable")

	// ErrPoolExhausted indicates no session became available before the
	// acquisition deadline.
	ErrPoolExhausted = errors.New("session pool exhausted")

	// ErrNotFound indicates a requested identity or relation endpoint is
	// absent. Plain Get lookups do not return it; relation endpoint
	// validation does.
	ErrNotFound = errors.New("not found")

	// ErrSerialization indicates item content could not be encoded or
	// decoded.
	ErrSerialization = errors.New("serialization failed")

	// ErrValidation indicates a malformed query or item.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupported indicates the backend cannot perform the requested
	// capability.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrStorageClosed indicates the backend has been closed.
	ErrStorageClosed = errors.New("storage is closed")
)
