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


package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/index"
)

// processor turns one batch of texts into waveforms.
type processor interface {
	// process returns one waveform per text, in input order.
	process(ctx context.Context, texts []string) ([]core.Waveform, error)
}

// encodingProcessor encodes batches with the index's encoder.
type encodingProcessor struct {
	index  *index.Index
	logger *slog.Logger
}

var _ processor = (*encodingProcessor)(nil)

func newEncodingProcessor(idx *index.Index, logger *slog.Logger) processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &encodingProcessor{
		index:  idx,
		logger: logger.With("processor", "encoding"),
	}
}

func (ep *encodingProcessor) process(ctx context.Context, texts []string) ([]core.Waveform, error) {
	sw := core.StartStopwatch()
	waves, err := ep.index.EncodeBatch(ctx, texts)
	if err != nil {
		ep.logger.Error("error encoding batch", "texts", len(texts), "err", err)
		return nil, err
	}
	ep.logger.Debug("encoded batch", "texts", len(texts), "ms", sw.Milliseconds())
	return waves, nil
}
