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


// Package storage provides the storage layer for cic.
//
// Two kinds of storage live here:
//
//   - MemoryStore: the in-memory, append-only arena of waveforms that every
//     search scans. Positions are assigned in append order and never change.
//   - Journal: the durable record of appended entries (document text plus
//     waveform) and the index configuration. The badger subpackage provides
//     the BadgerDB implementation.
//
// The wavefile subpackage reads and writes the portable array file used by
// Index.Save and Index.Load.
//
// # Constructor Return Type Pattern
//
// Constructors in the implementation packages return concrete types; callers
// that only need the abstraction hold them as storage.Journal or
// storage.CheckpointRepository:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	var journal storage.Journal = badger.NewJournal(backend)
//
// Use in tests with in-memory storage:
//
//	journal, backend, err := badger.NewMemoryJournal()
//
// # Serialization
//
// Journal records are encoded with mus-go primitives (see serialization.go).
// Waveform samples are stored at complex64 precision, the same precision the
// MemoryStore holds.
//
// # Thread Safety
//
// MemoryStore and every Journal implementation are safe for concurrent use.
// A MemoryStore scan observes the entries present when it started.
//
// # Context Support
//
// Journal methods accept context.Context for cancellation. Long iterations
// (ForEachEntry, large appends) check the context between records.
package storage
