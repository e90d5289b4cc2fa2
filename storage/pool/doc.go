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


// Package pool provides bounded session pools for storage backends.
//
// Two structurally different pools satisfy the same contract: at most
// N sessions live concurrently, acquisition waits or fails with
// storage.ErrPoolExhausted, and every acquired session is returned on
// release regardless of how the operation using it ended:
//
//   - Bridge bounds access to a strictly synchronous driver (SQLite).
//     Driver calls are submitted to a dedicated worker pool so they
//     never run on the caller's goroutine, and the caller awaits
//     completion under its context. This is an explicit sync-to-async
//     bridge, not a generic wrapper.
//
//   - Native wraps pgxpool for drivers with genuinely non-blocking
//     I/O; sessions are borrowed cooperatively from pgx's own pool.
//
// Construction validates the target (directories for file stores,
// reachability for networked stores) and fails fast rather than
// deferring failure to first use.
package pool
