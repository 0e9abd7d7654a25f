package index

import (
	"log/slog"

	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/encoder"
	"github.com/poiesic/cic/storage"
)

const (
	// DefaultLength is the default number of samples per waveform.
	DefaultLength = 512
	// DefaultTopBins is the default number of spectrum bins compared per query.
	DefaultTopBins = 16
	// DefaultLambda is the default weight of the phase term.
	DefaultLambda = 0.5
)

// Option configures an Index.
type Option func(*Index) error

// WithLength sets the waveform length N.
func WithLength(n int) Option {
	return func(idx *Index) error {
		if err := core.ValidateLength(n); err != nil {
			return err
		}
		idx.length = n
		return nil
	}
}

// WithTopBins sets K, the number of loudest query bins compared.
func WithTopBins(k int) Option {
	return func(idx *Index) error {
		if err := core.ValidateScoring(k, idx.lambda); err != nil {
			return err
		}
		idx.topBins = k
		return nil
	}
}

// WithLambda sets the weight of the phase term.
func WithLambda(lambda float64) Option {
	return func(idx *Index) error {
		if err := core.ValidateScoring(idx.topBins, lambda); err != nil {
			return err
		}
		idx.lambda = lambda
		return nil
	}
}

// WithMode selects the encoder construction.
func WithMode(mode encoder.Mode) Option {
	return func(idx *Index) error {
		idx.mode = mode
		return nil
	}
}

// WithModeName selects the encoder construction by name ("embed" or "char").
func WithModeName(name string) Option {
	return func(idx *Index) error {
		mode, err := encoder.ParseMode(name)
		if err != nil {
			return err
		}
		idx.mode = mode
		return nil
	}
}

// WithModel records the embedding model name in the journal configuration.
func WithModel(model string) Option {
	return func(idx *Index) error {
		idx.model = model
		return nil
	}
}

// WithJournal attaches a durable journal. The index replays it on
// construction and journals every append.
func WithJournal(journal storage.Journal) Option {
	return func(idx *Index) error {
		idx.journal = journal
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger
		return nil
	}
}
