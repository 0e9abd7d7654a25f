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


package encoder

import "errors"

var (
	// ErrEmbedderRequired is returned when the embed mode is built without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required for embed mode")

	// ErrEmptyEmbedding is returned when the embedder yields a zero-dimension vector.
	ErrEmptyEmbedding = errors.New("embedder returned an empty vector")

	// ErrEmbeddingCountMismatch is returned when a batch embed call returns
	// a different number of vectors than texts submitted.
	ErrEmbeddingCountMismatch = errors.New("embedder returned wrong number of vectors")
)
