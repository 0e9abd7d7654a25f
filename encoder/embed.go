package encoder

import (
	"context"
	"fmt"
	"math"

	"github.com/poiesic/cic/ai"
	"github.com/poiesic/cic/core"
)

// EmbedEncoder projects a sentence embedding onto a bank of sinusoids.
// Embedding component k (1-based) drives harmonic k with phase offset
// π(k-1)/(2d), so both the value and the position of every component shape
// the waveform.
type EmbedEncoder struct {
	*basis
	embedder ai.Embedder
}

// NewEmbedEncoder creates an encoder producing n-sample waveforms.
func NewEmbedEncoder(embedder ai.Embedder, n int) (*EmbedEncoder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b, err := newBasis(n)
	if err != nil {
		return nil, err
	}
	return &EmbedEncoder{basis: b, embedder: embedder}, nil
}

// Mode returns ModeEmbed.
func (e *EmbedEncoder) Mode() Mode { return ModeEmbed }

// Length returns the waveform length.
func (e *EmbedEncoder) Length() int { return e.n }

// Encode embeds text and converts the embedding into a waveform.
func (e *EmbedEncoder) Encode(ctx context.Context, text string) (core.Waveform, error) {
	vector, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return e.FromEmbedding(vector)
}

// EncodeBatch embeds all texts in one provider call.
func (e *EmbedEncoder) EncodeBatch(ctx context.Context, texts []string) ([]core.Waveform, error) {
	if len(texts) == 0 {
		return []core.Waveform{}, nil
	}
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(texts), len(vectors))
	}

	waves := make([]core.Waveform, len(vectors))
	for i, vector := range vectors {
		wave, err := e.FromEmbedding(vector)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		waves[i] = wave
	}
	return waves, nil
}

// FromEmbedding converts an embedding vector into a waveform without calling
// the embedder. The vector is L2-normalized first.
func (e *EmbedEncoder) FromEmbedding(vector []float32) (core.Waveform, error) {
	d := len(vector)
	if d == 0 {
		return nil, ErrEmptyEmbedding
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	scale := 1 / (math.Sqrt(sumSquares) + core.Epsilon)

	// cos(a+φ) and sin(a+φ) expand into the root-of-unity tables, so each
	// component contributes a_k·cos(a) - b_k·sin(a) to the real channel and
	// a_k·sin(a) + b_k·cos(a) to the imaginary one.
	a := make([]float64, d)
	b := make([]float64, d)
	for i, v := range vector {
		phi := math.Pi * float64(i) / float64(max(1, 2*d))
		x := float64(v) * scale
		a[i] = x * math.Cos(phi)
		b[i] = x * math.Sin(phi)
	}

	re := make([]float64, e.n)
	im := make([]float64, e.n)
	for n := 0; n < e.n; n++ {
		var sr, si float64
		for i := 0; i < d; i++ {
			k := i + 1
			idx := (k * n) % e.n
			c, s := e.cos[idx], e.sin[idx]
			sr += a[i]*c - b[i]*s
			si += a[i]*s + b[i]*c
		}
		re[n] = sr
		im[n] = si
	}

	return e.finish(re, im), nil
}
