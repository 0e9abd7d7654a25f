package encoder

import (
	"context"
	"math"

	"github.com/poiesic/cic/core"
)

// CharEncoder builds a waveform from the characters of the text. Each rune
// becomes a complex tone whose frequency comes from its code point and whose
// phase comes from its position in the text. No embedder is needed, so
// matching is purely lexical.
type CharEncoder struct {
	*basis
	span int
}

// NewCharEncoder creates an encoder producing n-sample waveforms.
func NewCharEncoder(n int) (*CharEncoder, error) {
	b, err := newBasis(n)
	if err != nil {
		return nil, err
	}
	// Tones stay below Nyquist: frequencies 1..span.
	return &CharEncoder{basis: b, span: max(1, n/2-1)}, nil
}

// Mode returns ModeChar.
func (e *CharEncoder) Mode() Mode { return ModeChar }

// Length returns the waveform length.
func (e *CharEncoder) Length() int { return e.n }

// Encode converts text into a waveform. Empty text yields the all-zero waveform.
func (e *CharEncoder) Encode(ctx context.Context, text string) (core.Waveform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.encode(text), nil
}

// EncodeBatch converts texts in input order.
func (e *CharEncoder) EncodeBatch(ctx context.Context, texts []string) ([]core.Waveform, error) {
	waves := make([]core.Waveform, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		waves[i] = e.encode(text)
	}
	return waves, nil
}

func (e *CharEncoder) encode(text string) core.Waveform {
	runes := []rune(text)
	re := make([]float64, e.n)
	im := make([]float64, e.n)

	for j, r := range runes {
		freq := 1 + int(r)%e.span
		phi := 2 * math.Pi * float64(j) / float64(len(runes))
		cphi, sphi := math.Cos(phi), math.Sin(phi)
		for n := 0; n < e.n; n++ {
			idx := (freq * n) % e.n
			c, s := e.cos[idx], e.sin[idx]
			re[n] += c*cphi - s*sphi
			im[n] += s*cphi + c*sphi
		}
	}

	return e.finish(re, im)
}
