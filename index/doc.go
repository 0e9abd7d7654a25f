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


// Package index implements resonance retrieval over an append-only store.
//
// An Index owns an encoder, a memory store and a resonance scorer, all sized
// to the same waveform length N. Adding text encodes it and appends the
// waveform; searching encodes the query once, scores it against every stored
// waveform in a linear scan, and returns the best positions.
//
//	idx, err := index.NewIndex(ctx, provider.Embedder(),
//	    index.WithLength(512),
//	    index.WithTopBins(16),
//	    index.WithLambda(0.5),
//	)
//	pos, err := idx.AddText(ctx, "the cat sat on the mat")
//	results, err := idx.Search(ctx, "where did the cat sit?", 5)
//
// # Persistence
//
// Save and Load move the raw waveform sequence through an array file (see
// storage/wavefile); Load appends. For durability of the source text as well,
// attach a storage.Journal with WithJournal: every append is journaled before
// it reaches the memory store, and a new Index over the same journal replays
// it on construction.
//
// # Thread Safety
//
// Searches may run concurrently with each other and with appends. A search
// sees the entries present when its scan began.
package index
