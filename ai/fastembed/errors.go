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


package fastembed

import "errors"

const defaultBatchSize = 256

var (
	// ErrNotAvailable is returned when the binary was built without cgo.
	ErrNotAvailable = errors.New("fastembed: not available (binary built without cgo, use the openai backend instead)")

	// ErrUnsupportedModel is returned for model names with no fastembed equivalent.
	ErrUnsupportedModel = errors.New("fastembed: unsupported model")

	// ErrClosed is returned when embedding after Close.
	ErrClosed = errors.New("fastembed: provider closed")
)
