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


// Package search turns ranked resonance positions into document hits.
//
// The Searcher runs an index search and, when the index has a journal,
// attaches the journaled document to each result. A hit is flagged as
// verbatim when its document contains every query word that is not a
// stop word. Verbatim matching is case-insensitive and ignores surrounding
// punctuation.
//
// Verbatim flags are informational by default. WithVerbatimBoost adds a
// fixed amount to the score of verbatim hits and re-ranks the results.
package search
