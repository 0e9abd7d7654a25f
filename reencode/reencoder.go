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


package reencode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/index"
	"github.com/poiesic/cic/storage"
)

// CheckpointName identifies re-encoding progress in a checkpoint repository.
const CheckpointName = "reencode"

// Config holds configuration for a re-encoding run.
type Config struct {
	// BatchSize is the number of documents encoded together
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of encoding attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Summary describes a completed run.
type Summary struct {
	Processed int // Source entries visited
	Added     int // Entries appended to the target
	Skipped   int // Entries without text
	Resumed   int // Source position the run started from
	Elapsed   time.Duration
}

// Reencoder copies journaled text from a source into a target index.
type Reencoder struct {
	source      storage.Journal
	target      *index.Index
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Reencoder.
type Option func(*Reencoder)

// WithCheckpoints records progress after every batch so an interrupted run
// resumes where it stopped.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(r *Reencoder) { r.checkpoints = repo }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reencoder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReencoder creates a new reencoder.
// progress: where to write progress output (typically os.Stderr)
func NewReencoder(source storage.Journal, target *index.Index, config *Config, progress io.Writer, opts ...Option) (*Reencoder, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if target == nil {
		return nil, ErrTargetRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reencoder{
		source:   source,
		target:   target,
		config:   config,
		progress: progress,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reencoder")
	return r, nil
}

// Run re-encodes every source entry that has not been processed yet.
func (r *Reencoder) Run(ctx context.Context) (*Summary, error) {
	start, err := r.resumePosition(ctx)
	if err != nil {
		return nil, err
	}

	total, err := r.source.CountEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting source entries: %w", err)
	}

	summary := &Summary{Resumed: start}
	remaining := total - start
	if remaining <= 0 {
		fmt.Fprintf(r.progress, "Nothing to re-encode (%d entries, resuming at %d)\n", total, start)
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Re-encoding %d entries (batch size: %d, target length: %d, mode: %s)\n",
		remaining, r.config.BatchSize, r.target.Length(), r.target.Mode())

	tracker := NewProgressTracker(r.progress, remaining, r.config.ReportInterval)
	tracker.Start()

	processor := NewBatchProcessor(r.target, r.config.MaxRetries, r.config.RetryDelay)
	iterator := NewDocumentIterator(r.source, r.config.BatchSize)

	err = iterator.ForEach(ctx, start, func(docs []core.Document) error {
		added, skipped, err := processor.Process(ctx, docs)
		if err != nil {
			if added > 0 {
				summary.Added += added
				next := lastAppended(docs, added) + 1
				// The target kept part of the batch; resume after it.
				if saveErr := r.saveCheckpoint(context.WithoutCancel(ctx), next); saveErr != nil {
					r.logger.Error("saving partial checkpoint", "position", next, "err", saveErr)
				}
			}
			return fmt.Errorf("batch at position %d: %w", docs[0].Position, err)
		}
		summary.Processed += len(docs)
		summary.Added += added
		summary.Skipped += skipped

		if err := r.saveCheckpoint(ctx, docs[len(docs)-1].Position+1); err != nil {
			return fmt.Errorf("saving checkpoint: %w", err)
		}

		tracker.Increment(len(docs))
		return nil
	})
	if err != nil {
		r.logger.Error("re-encoding stopped", "processed", summary.Processed, "err", err)
		return summary, err
	}

	tracker.Finish()
	summary.Elapsed = tracker.Elapsed()
	if summary.Skipped > 0 {
		r.logger.Warn("skipped entries without text", "count", summary.Skipped)
	}
	fmt.Fprintf(r.progress, "Re-encoding complete. Added %d entries, skipped %d, in %v\n",
		summary.Added, summary.Skipped, summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

func (r *Reencoder) resumePosition(ctx context.Context) (int, error) {
	if r.checkpoints == nil {
		return 0, nil
	}
	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, CheckpointName)
	if err != nil {
		return 0, fmt.Errorf("loading checkpoint: %w", err)
	}
	if checkpoint == nil {
		return 0, nil
	}
	r.logger.Info("resuming from checkpoint", "position", checkpoint.Position, "updated", checkpoint.UpdatedAt)
	return checkpoint.Position, nil
}

func (r *Reencoder) saveCheckpoint(ctx context.Context, next int) error {
	if r.checkpoints == nil {
		return nil
	}
	return r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: CheckpointName, Position: next})
}
