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


// Package storage provides the storage abstraction layer for indexit.
//
// This package defines the interfaces that decouple the vectorization
// pipeline from its two persistence backends: the file metadata store
// and the vector index. It allows different implementations (SQLite,
// BadgerDB, in-memory, etc.) to be used interchangeably.
//
// # Constructor Return Type Pattern
//
// Accessors and constructors hand out the storage interfaces rather
// than the concrete backend types:
//
//	store, err := sqlite.NewStore(dataDir)
//	files := store.FileRepository()    // returns storage.FileRepository
//	index, err := badger.NewIndex(backend)  // returns storage.VectorIndex
//
// This design decision prioritizes:
//   - Abstraction: Prevents accidental coupling to backend specifics
//   - Swappability: Easy to add alternative backends
//   - Testing: Consumers can use mock implementations without modification
//
// # Consistency
//
// The metadata store and the vector index are separate systems and can
// drift after partial failures. The reconcile package detects and
// repairs that drift; the interfaces here expose the operations it
// needs (FindOrphaned, CountByFile, Status).
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent
// access from multiple goroutines. Writers to different files must not
// block each other.
package storage
