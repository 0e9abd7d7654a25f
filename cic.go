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


// Package cic is a deterministic text retrieval engine that ranks stored
// text by spectral resonance with a query.
//
// An Engine bundles a badger journal, an embedding provider and an index:
//
//	engine, err := cic.Open("./cic.db")
//	defer engine.Close()
//	engine.AddTexts(ctx, []string{"the cat sat on the mat", "stock prices fell"})
//	hits, err := engine.Search(ctx, "where is the cat?", 5)
package cic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/cic/ai"
	"github.com/poiesic/cic/ai/fastembed"
	"github.com/poiesic/cic/ai/openai"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/encoder"
	"github.com/poiesic/cic/index"
	"github.com/poiesic/cic/ingestion"
	"github.com/poiesic/cic/reencode"
	"github.com/poiesic/cic/search"
	"github.com/poiesic/cic/storage"
	"github.com/poiesic/cic/storage/badger"
	"github.com/poiesic/cic/storage/wavefile"
)

type Engine struct {
	backend        *badger.Backend
	journal        storage.Journal
	checkpointRepo *badger.CheckpointRepository
	provider       ai.AIProvider
	ownsProvider   bool
	index          *index.Index
	searcher       *search.Searcher
	pipeline       *ingestion.Pipeline
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	aiConfig   *ai.Config
	provider   ai.AIProvider
	mode       encoder.Mode
	inMemory   bool
	indexOpts  []index.Option
	ingestOpts []ingestion.Option
	searchOpts []search.Option
	logger     *slog.Logger
}

// WithAIConfig sets the provider configuration used in embed mode.
func WithAIConfig(config *ai.Config) Option {
	return func(o *engineOptions) { o.aiConfig = config }
}

// WithProvider supplies an already-built provider. The caller keeps
// ownership and closes it after the engine.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) { o.provider = provider }
}

// WithMode selects the encoder construction. Char mode needs no provider.
func WithMode(mode encoder.Mode) Option {
	return func(o *engineOptions) { o.mode = mode }
}

// WithInMemory keeps the journal in memory; the path passed to Open is ignored.
func WithInMemory() Option {
	return func(o *engineOptions) { o.inMemory = true }
}

// WithIndexOptions passes options to the index, such as length and top bins.
func WithIndexOptions(opts ...index.Option) Option {
	return func(o *engineOptions) { o.indexOpts = append(o.indexOpts, opts...) }
}

// WithIngestionOptions passes options to the bulk ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) Option {
	return func(o *engineOptions) { o.ingestOpts = append(o.ingestOpts, opts...) }
}

// WithSearchOptions passes options to the searcher.
func WithSearchOptions(opts ...search.Option) Option {
	return func(o *engineOptions) { o.searchOpts = append(o.searchOpts, opts...) }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// Open opens or creates the engine stored at path. Existing journal entries
// are replayed into memory before Open returns.
func Open(path string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		mode:     encoder.ModeEmbed,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(path, options.inMemory)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		backend:        backend,
		journal:        badger.NewJournal(backend),
		checkpointRepo: badger.NewCheckpointRepository(backend),
		logger:         options.logger.With("component", "engine"),
	}
	if err := e.init(options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(options *engineOptions) error {
	var embedder ai.Embedder
	indexOpts := []index.Option{index.WithMode(options.mode)}

	if options.mode == encoder.ModeEmbed {
		provider := options.provider
		if provider == nil {
			var err error
			if provider, err = newProvider(options.aiConfig); err != nil {
				return err
			}
			e.ownsProvider = true
		}
		e.provider = provider
		embedder = provider.Embedder()
		indexOpts = append(indexOpts, index.WithModel(options.aiConfig.EmbeddingModel))
	}

	indexOpts = append(indexOpts, options.indexOpts...)
	indexOpts = append(indexOpts, index.WithJournal(e.journal), index.WithLogger(options.logger))

	idx, err := index.NewIndex(context.Background(), embedder, indexOpts...)
	if err != nil {
		return err
	}
	e.index = idx

	searchOpts := append([]search.Option{search.WithLogger(options.logger)}, options.searchOpts...)
	if e.searcher, err = search.NewSearcher(idx, searchOpts...); err != nil {
		return err
	}

	ingestOpts := append([]ingestion.Option{ingestion.WithLogger(options.logger)}, options.ingestOpts...)
	if e.pipeline, err = ingestion.NewPipeline(idx, ingestOpts...); err != nil {
		return err
	}
	return nil
}

// newProvider builds the provider named by config.Backend.
func newProvider(config *ai.Config) (ai.AIProvider, error) {
	if config == nil {
		config = ai.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Backend {
	case ai.BackendFastEmbed:
		return fastembed.NewProvider(config)
	default:
		return openai.NewProvider(config)
	}
}

// Close releases the pipeline, the provider if the engine created it,
// and the storage backend.
func (e *Engine) Close() error {
	if e.pipeline != nil {
		e.pipeline.Release()
	}

	var errs []error
	if e.ownsProvider && e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, fmt.Errorf("closing provider: %w", err))
		}
	}

	if err := e.journal.Close(); err != nil {
		e.logger.Error("error closing journal", "err", err)
		errs = append(errs, fmt.Errorf("closing journal: %w", err))
	}

	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, fmt.Errorf("closing backend: %w", err))
	}
	return errors.Join(errs...)
}

// AddText encodes text, journals it and appends it. Returns its position.
func (e *Engine) AddText(ctx context.Context, text string) (int, error) {
	return e.index.AddText(ctx, text)
}

// AddTexts adds texts one at a time in input order.
func (e *Engine) AddTexts(ctx context.Context, texts []string) ([]int, error) {
	return e.index.AddTexts(ctx, texts)
}

// Ingest adds texts through the concurrent pipeline, preserving input order.
func (e *Engine) Ingest(ctx context.Context, texts []string) ([]int, error) {
	return e.pipeline.Ingest(ctx, texts)
}

// IngestReader ingests every non-blank line of r.
func (e *Engine) IngestReader(ctx context.Context, r io.Reader) ([]int, error) {
	return e.pipeline.IngestReader(ctx, r)
}

// Search returns up to topK hits with their journaled documents.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]core.Hit, error) {
	return e.searcher.FindSimilar(ctx, query, topK)
}

// SearchWithMonitor is Search with callbacks from the index search.
func (e *Engine) SearchWithMonitor(ctx context.Context, query string, topK int, monitor index.SearchMonitor) ([]core.Hit, error) {
	return e.searcher.FindSimilarWithMonitor(ctx, query, topK, monitor)
}

// Save exports every waveform to an array file.
func (e *Engine) Save(path string, opts ...wavefile.Option) error {
	return e.index.Save(path, opts...)
}

// Load appends the waveforms of an array file and journals them without text.
func (e *Engine) Load(ctx context.Context, path string) (int, error) {
	return e.index.Load(ctx, path)
}

// Reencode copies this engine's journaled text into target, encoding it
// with target's configuration. Progress is checkpointed in target's
// storage, so repeating the call after a failure resumes.
func (e *Engine) Reencode(ctx context.Context, target *Engine, config *reencode.Config, progress io.Writer) (*reencode.Summary, error) {
	if target == nil || target == e {
		return nil, fmt.Errorf("%w: re-encoding needs a separate target engine", reencode.ErrTargetRequired)
	}
	r, err := reencode.NewReencoder(e.journal, target.index, config, progress,
		reencode.WithCheckpoints(target.checkpointRepo),
		reencode.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Len returns the number of stored entries.
func (e *Engine) Len() int { return e.index.Len() }

func (e *Engine) Index() *index.Index { return e.index }

func (e *Engine) Journal() storage.Journal { return e.journal }

func (e *Engine) CheckpointRepository() storage.CheckpointRepository { return e.checkpointRepo }

func (e *Engine) Searcher() *search.Searcher { return e.searcher }
