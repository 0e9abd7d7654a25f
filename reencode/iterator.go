package reencode

import (
	"context"
	"errors"

	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/storage"
)

// DefaultBatchSize is the default number of documents per batch.
const DefaultBatchSize = 100

var errStopIteration = errors.New("stop iteration")

// DocumentIterator walks a journal's documents in batches.
type DocumentIterator struct {
	journal   storage.Journal
	batchSize int
}

// NewDocumentIterator creates a new iterator. A batchSize below one falls
// back to DefaultBatchSize.
func NewDocumentIterator(journal storage.Journal, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentIterator{journal: journal, batchSize: batchSize}
}

// ForEach calls fn with consecutive batches of documents starting at
// position start. Iteration stops on the first error from fn, which is
// returned. Context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, start int, fn func([]core.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]core.Document, 0, it.batchSize)
	var fnErr error
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			fnErr = err
			return errStopIteration
		}
		batch = make([]core.Document, 0, it.batchSize)
		return ctx.Err()
	}

	err := it.journal.ForEachEntry(ctx, start, func(entry core.Entry) error {
		batch = append(batch, entry.Document)
		if len(batch) < it.batchSize {
			return nil
		}
		return flush()
	})
	if err == nil {
		err = flush()
	}
	if errors.Is(err, errStopIteration) {
		return fnErr
	}
	return err
}
