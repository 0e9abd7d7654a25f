package reencode

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/index"
)

// BatchProcessor encodes batches of documents into a target index.
type BatchProcessor struct {
	target         *index.Index
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of encoding attempts per batch
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(target *index.Index, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		target:         target,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process encodes the documents that have text and appends them to the
// target in order. It returns how many were appended and how many were
// skipped for lack of text. When the target keeps only part of the batch,
// added counts the documents it kept and err is non-nil.
func (bp *BatchProcessor) Process(ctx context.Context, docs []core.Document) (added, skipped int, err error) {
	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.Text == "" {
			skipped++
			continue
		}
		texts = append(texts, doc.Text)
	}
	if len(texts) == 0 {
		return 0, skipped, nil
	}

	var waves []core.Waveform
	err = RetryWithBackoff(ctx, func(ctx context.Context) error {
		var encodeErr error
		waves, encodeErr = bp.target.EncodeBatch(ctx, texts)
		return encodeErr
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, skipped, fmt.Errorf("encoding %d documents after %d attempts: %w", len(texts), bp.maxRetries, err)
	}

	positions, err := bp.target.AddEncoded(ctx, texts, waves)
	if err != nil {
		return len(positions), skipped, fmt.Errorf("appending to target: %w", err)
	}
	return len(positions), skipped, nil
}

// lastAppended returns the position of the document that was appended
// added-th among docs, skipping documents without text.
func lastAppended(docs []core.Document, added int) int {
	for _, doc := range docs {
		if doc.Text == "" {
			continue
		}
		added--
		if added == 0 {
			return doc.Position
		}
	}
	return docs[len(docs)-1].Position
}
