package storage

import (
	"context"

	"github.com/poiesic/cic/core"
)

// IndexConfig is the part of an index configuration that determines how
// stored waveforms were produced. A journal is only valid for an index with
// the same Length and Mode.
type IndexConfig struct {
	Length int
	Mode   string
	Model  string // Embedding model; empty for character encoding
}

// Journal is the durable record of everything appended to an index.
// Implementations must be thread-safe and support concurrent access.
type Journal interface {
	// AppendEntries appends entries and returns how many were committed.
	// Positions must continue the journal: the first entry's position equals
	// the current count and each following entry is one greater. Otherwise
	// ErrOutOfOrder is returned and nothing is written. An append may be
	// committed in several pieces; on failure the returned count is the
	// committed prefix, which stays in the journal.
	AppendEntries(ctx context.Context, entries ...core.Entry) (int, error)

	// CountEntries returns the number of journaled entries.
	CountEntries(ctx context.Context) (int, error)

	// ForEachEntry calls fn for every entry with position >= start in
	// ascending position order. Iteration stops at the first error from fn,
	// which is returned.
	ForEachEntry(ctx context.Context, start int, fn func(entry core.Entry) error) error

	// GetDocument retrieves the document at a position.
	// Returns ErrNotFound if no entry exists there.
	GetDocument(ctx context.Context, position int) (*core.Document, error)

	// GetDocuments retrieves documents by position, in the order requested.
	// Missing positions are skipped.
	GetDocuments(ctx context.Context, positions ...int) ([]*core.Document, error)

	// SaveConfig records the index configuration.
	SaveConfig(ctx context.Context, config IndexConfig) error

	// LoadConfig returns the recorded configuration, or ErrNotFound.
	LoadConfig(ctx context.Context) (*IndexConfig, error)

	// Close releases resources held by the journal.
	Close() error
}

// CheckpointRepository persists processor progress so long-running jobs can resume.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}
