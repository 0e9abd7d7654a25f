package openai

import "errors"

var (
	// ErrVectorCountMismatch is returned when the service answers with a
	// different number of vectors than texts sent.
	ErrVectorCountMismatch = errors.New("openai: embedding count does not match input count")

	// ErrDimensionChanged is returned when the model returns vectors of a
	// different dimension than it did earlier. Waveforms built from vectors of
	// different dimensions are not comparable.
	ErrDimensionChanged = errors.New("openai: embedding dimension changed")
)
