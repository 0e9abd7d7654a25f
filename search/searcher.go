package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/index"
)

// Searcher resolves index results into document hits.
type Searcher struct {
	index         *index.Index
	verbatimBoost float64
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithVerbatimBoost adds boost to the score of verbatim hits and re-ranks.
// Default is 0, which leaves resonance order untouched.
func WithVerbatimBoost(boost float64) Option {
	return func(s *Searcher) error {
		if err := core.ValidateScoring(1, boost); err != nil {
			return err
		}
		s.verbatimBoost = boost
		return nil
	}
}

// NewSearcher creates a new searcher over idx.
func NewSearcher(idx *index.Index, opts ...Option) (*Searcher, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}

	s := &Searcher{
		index:  idx,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// FindSimilar returns up to maxHits documents that resonate with query.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]core.Hit, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks from the index search.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor index.SearchMonitor) ([]core.Hit, error) {
	results, err := s.index.SearchWithMonitor(ctx, query, maxHits, monitor)
	if err != nil {
		return nil, err
	}

	hits := make([]core.Hit, len(results))
	for i, result := range results {
		hits[i].Result = result
	}

	journal := s.index.Journal()
	if journal == nil || len(hits) == 0 {
		return hits, nil
	}

	positions := make([]int, len(results))
	for i, result := range results {
		positions[i] = result.Position
	}
	docs, err := journal.GetDocuments(ctx, positions...)
	if err != nil {
		s.logger.Error("error retrieving documents", "count", len(positions), "err", err)
		return nil, fmt.Errorf("retrieving documents: %w", err)
	}
	byPosition := make(map[int]*core.Document, len(docs))
	for _, doc := range docs {
		byPosition[doc.Position] = doc
	}

	matcher := newVerbatimMatcher(query)
	boosted := false
	for i := range hits {
		doc, ok := byPosition[hits[i].Position]
		if !ok {
			s.logger.Warn("journal has no document for position", "position", hits[i].Position)
			continue
		}
		hits[i].Document = doc
		hits[i].Verbatim = matcher.matches(doc.Text)
		if hits[i].Verbatim && s.verbatimBoost != 0 {
			hits[i].Score += s.verbatimBoost
			boosted = true
		}
	}

	if boosted {
		slices.SortStableFunc(hits, func(a, b core.Hit) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return cmp.Compare(a.Position, b.Position)
		})
	}
	return hits, nil
}
