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


package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/poiesic/cic/ai"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/encoder"
	"github.com/poiesic/cic/resonance"
	"github.com/poiesic/cic/storage"
	"github.com/poiesic/cic/storage/wavefile"
)

// Index ties an encoder, a memory store and a resonance scorer together.
// Configuration is fixed at construction.
type Index struct {
	length  int
	topBins int
	lambda  float64
	mode    encoder.Mode
	model   string

	encoder encoder.Encoder
	store   *storage.MemoryStore
	scorer  *resonance.Scorer
	journal storage.Journal
	logger  *slog.Logger

	// Serializes appends so journal positions match store positions.
	appendMu sync.Mutex
}

// NewIndex creates an index. The embedder is required for the embed mode
// and may be nil for the char mode. If a journal is attached, its entries
// are replayed into the memory store before NewIndex returns.
func NewIndex(ctx context.Context, embedder ai.Embedder, opts ...Option) (*Index, error) {
	idx := &Index{
		length:  DefaultLength,
		topBins: DefaultTopBins,
		lambda:  DefaultLambda,
		mode:    encoder.ModeEmbed,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "index")

	enc, err := encoder.New(idx.mode, idx.length, embedder)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewMemoryStore(idx.length)
	if err != nil {
		return nil, err
	}
	scorer, err := resonance.NewScorer(idx.length)
	if err != nil {
		return nil, err
	}
	idx.encoder = enc
	idx.store = store
	idx.scorer = scorer

	if idx.journal != nil {
		if err := idx.replay(ctx); err != nil {
			return nil, err
		}
	}

	idx.logger.Debug("index ready",
		"length", idx.length, "topBins", idx.topBins, "lambda", idx.lambda,
		"mode", idx.mode, "entries", idx.store.Len())
	return idx, nil
}

// Config returns the configuration that determines stored waveforms.
func (idx *Index) Config() storage.IndexConfig {
	config := storage.IndexConfig{Length: idx.length, Mode: idx.mode.String()}
	if idx.mode == encoder.ModeEmbed {
		config.Model = idx.model
	}
	return config
}

// replay checks the journal configuration and loads its entries.
func (idx *Index) replay(ctx context.Context) error {
	sw := core.StartStopwatch()
	want := idx.Config()

	stored, err := idx.journal.LoadConfig(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := idx.journal.SaveConfig(ctx, want); err != nil {
			return fmt.Errorf("recording index configuration: %w", err)
		}
	case err != nil:
		return fmt.Errorf("loading index configuration: %w", err)
	default:
		if stored.Length != want.Length || stored.Mode != want.Mode {
			return fmt.Errorf("%w: journal has length %d mode %s, index has length %d mode %s",
				storage.ErrConfigMismatch, stored.Length, stored.Mode, want.Length, want.Mode)
		}
		if stored.Model != want.Model {
			idx.logger.Warn("embedding model differs from journal; consider re-encoding",
				"journal", stored.Model, "index", want.Model)
		}
	}

	err = idx.journal.ForEachEntry(ctx, 0, func(entry core.Entry) error {
		pos, err := idx.store.Add(entry.Wave)
		if err != nil {
			return fmt.Errorf("replaying position %d: %w", entry.Document.Position, err)
		}
		if pos != entry.Document.Position {
			return fmt.Errorf("%w: journal position %d replayed at %d",
				storage.ErrOutOfOrder, entry.Document.Position, pos)
		}
		return nil
	})
	if err != nil {
		return err
	}

	idx.logger.Info("replayed journal", "entries", idx.store.Len(), "ms", sw.Milliseconds())
	return nil
}

// Len returns the number of stored waveforms.
func (idx *Index) Len() int { return idx.store.Len() }

// Length returns the waveform length N.
func (idx *Index) Length() int { return idx.length }

// TopBins returns K.
func (idx *Index) TopBins() int { return idx.topBins }

// Lambda returns the phase weight.
func (idx *Index) Lambda() float64 { return idx.lambda }

// Mode returns the encoder construction.
func (idx *Index) Mode() encoder.Mode { return idx.mode }

// Journal returns the attached journal, or nil.
func (idx *Index) Journal() storage.Journal { return idx.journal }

// Get returns the waveform at a position.
func (idx *Index) Get(position int) (core.Waveform, error) {
	return idx.store.Get(position)
}

// Encode converts text to a waveform without storing it.
func (idx *Index) Encode(ctx context.Context, text string) (core.Waveform, error) {
	return idx.encoder.Encode(ctx, text)
}

// EncodeBatch converts texts to waveforms without storing them.
func (idx *Index) EncodeBatch(ctx context.Context, texts []string) ([]core.Waveform, error) {
	return idx.encoder.EncodeBatch(ctx, texts)
}

// AddText encodes text and appends it. Returns the new position.
func (idx *Index) AddText(ctx context.Context, text string) (int, error) {
	wave, err := idx.encoder.Encode(ctx, text)
	if err != nil {
		return 0, err
	}
	positions, err := idx.AddEncoded(ctx, []string{text}, []core.Waveform{wave})
	if err != nil {
		return 0, err
	}
	return positions[0], nil
}

// AddTexts adds texts one at a time in input order. On failure it returns
// the positions added so far together with the error.
func (idx *Index) AddTexts(ctx context.Context, texts []string) ([]int, error) {
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		pos, err := idx.AddText(ctx, text)
		if err != nil {
			return positions, fmt.Errorf("text %d: %w", i, err)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// AddEncoded appends already-encoded waveforms at consecutive positions.
// texts holds the source text of each waveform and may be nil when the
// text is unknown. The batch is validated before anything is written, and
// the journal is written before the memory store. If the journal commits
// only a prefix of the batch, that prefix is added to the memory store and
// its positions are returned together with the error.
func (idx *Index) AddEncoded(ctx context.Context, texts []string, waves []core.Waveform) ([]int, error) {
	if texts != nil && len(texts) != len(waves) {
		return nil, fmt.Errorf("%w: %d texts, %d waveforms", ErrTextCountMismatch, len(texts), len(waves))
	}
	for i, wave := range waves {
		if err := core.ValidateWaveform(wave, idx.length); err != nil {
			return nil, fmt.Errorf("waveform %d: %w", i, err)
		}
	}
	if len(waves) == 0 {
		return []int{}, nil
	}

	idx.appendMu.Lock()
	defer idx.appendMu.Unlock()

	var journalErr error
	if idx.journal != nil {
		first := idx.store.Len()
		entries := make([]core.Entry, len(waves))
		for i, wave := range waves {
			var text string
			if texts != nil {
				text = texts[i]
			}
			entries[i] = core.Entry{
				Document: core.Document{
					Id:       core.IDFromContent(text),
					Position: first + i,
					Text:     text,
				},
				Wave: wave,
			}
		}
		committed, err := idx.journal.AppendEntries(ctx, entries...)
		if err != nil {
			journalErr = fmt.Errorf("journaling %d entries: %w", len(entries), err)
			if committed == 0 {
				return nil, journalErr
			}
			idx.logger.Warn("journal append committed partially",
				"committed", committed, "requested", len(entries), "error", err)
			waves = waves[:committed]
		}
	}

	first, err := idx.store.AddBatch(waves)
	if err != nil {
		return nil, err
	}

	positions := make([]int, len(waves))
	for i := range positions {
		positions[i] = first + i
	}
	return positions, journalErr
}

// Search returns the topK stored waveforms that resonate most with query,
// by descending score with ties broken by ascending position.
func (idx *Index) Search(ctx context.Context, query string, topK int) ([]core.Result, error) {
	return idx.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (idx *Index) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]core.Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidTopK, topK)
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)
	sw := core.StartStopwatch()
	wave, err := idx.encoder.Encode(ctx, query)
	if err != nil {
		idx.logger.Error("error encoding query", "err", err)
		return nil, err
	}
	monitor.AfterQueryEncoding(wave, sw.Elapsed())

	return idx.searchWave(ctx, wave, topK, monitor, sw)
}

// SearchWave ranks stored waveforms against an already-encoded query.
func (idx *Index) SearchWave(ctx context.Context, wave core.Waveform, topK int) ([]core.Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidTopK, topK)
	}
	return idx.searchWave(ctx, wave, topK, &noopMonitor{}, core.StartStopwatch())
}

func (idx *Index) searchWave(ctx context.Context, wave core.Waveform, topK int, monitor SearchMonitor, sw core.Stopwatch) ([]core.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query, err := idx.scorer.Prepare(wave, idx.topBins)
	if err != nil {
		return nil, err
	}

	results := make([]core.Result, 0, idx.store.Len())
	var scanErr error
	idx.store.Scan(func(pos int, stored core.Waveform) bool {
		spectrum, err := idx.scorer.Spectrum(stored)
		if err != nil {
			scanErr = err
			return false
		}
		score := query.TermsFromSpectrum(spectrum).Score(idx.lambda)
		monitor.EntryScored(pos, score)
		results = append(results, core.Result{Position: pos, Score: score})
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}

	scanned := len(results)
	slices.SortStableFunc(results, func(a, b core.Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	if len(results) > topK {
		results = results[:topK]
	}

	elapsed := sw.Elapsed()
	monitor.Finish(results, elapsed)
	idx.logger.Debug("search complete", "scanned", scanned, "returned", len(results), "ms", sw.Milliseconds())
	return results, nil
}

// Save writes every stored waveform to an array file at path.
func (idx *Index) Save(path string, opts ...wavefile.Option) error {
	sw := core.StartStopwatch()
	if err := wavefile.SaveToFile(path, idx.store, opts...); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	idx.logger.Info("saved index", "path", path, "entries", idx.store.Len(), "ms", sw.Milliseconds())
	return nil
}

// Load appends the waveforms of an array file after the existing entries
// and returns how many were loaded. Loaded entries have no source text.
func (idx *Index) Load(ctx context.Context, path string) (int, error) {
	sw := core.StartStopwatch()
	arr, err := wavefile.LoadFromFile(path)
	if err != nil {
		return 0, err
	}
	if arr.N() != idx.length {
		return 0, fmt.Errorf("loading %s: %w", path, &core.LengthMismatchError{Expected: idx.length, Actual: arr.N()})
	}

	positions, err := idx.AddEncoded(ctx, nil, arr.Waves)
	if err != nil {
		return len(positions), fmt.Errorf("loading %s: %w", path, err)
	}
	idx.logger.Info("loaded array file", "path", path, "entries", len(positions), "ms", sw.Milliseconds())
	return len(positions), nil
}
