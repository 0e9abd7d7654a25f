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


package encoder

import (
	"context"
	"fmt"
	"math"

	"github.com/poiesic/cic/ai"
	"github.com/poiesic/cic/core"
)

// Encoder turns text into a fixed-length complex waveform.
// Implementations are deterministic: the same text (and, for ModeEmbed, the
// same embedding) always produces the same waveform.
type Encoder interface {
	// Encode converts a single text.
	Encode(ctx context.Context, text string) (core.Waveform, error)

	// EncodeBatch converts texts in input order.
	EncodeBatch(ctx context.Context, texts []string) ([]core.Waveform, error)

	// Mode reports which construction the encoder uses.
	Mode() Mode

	// Length returns N, the number of samples in every waveform produced.
	Length() int
}

// New builds the encoder for mode. The embedder is required for ModeEmbed
// and ignored for ModeChar.
func New(mode Mode, n int, embedder ai.Embedder) (Encoder, error) {
	switch mode {
	case ModeEmbed:
		return NewEmbedEncoder(embedder, n)
	case ModeChar:
		return NewCharEncoder(n)
	default:
		return nil, fmt.Errorf("%w: unknown encoder mode %s", core.ErrInvalidConfiguration, mode)
	}
}

// basis holds the tables shared by both constructions: the N roots of unity
// and the Hann window.
type basis struct {
	n      int
	cos    []float64
	sin    []float64
	window []float64
}

func newBasis(n int) (*basis, error) {
	if err := core.ValidateLength(n); err != nil {
		return nil, err
	}
	b := &basis{
		n:      n,
		cos:    make([]float64, n),
		sin:    make([]float64, n),
		window: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		b.cos[i] = math.Cos(angle)
		b.sin[i] = math.Sin(angle)
		b.window[i] = 0.5 - 0.5*math.Cos(angle)
	}
	return b, nil
}

// finish applies the Hann window and scales to unit energy in place, then
// packs the channels into a waveform.
func (b *basis) finish(re, im []float64) core.Waveform {
	var energy float64
	for i := 0; i < b.n; i++ {
		re[i] *= b.window[i]
		im[i] *= b.window[i]
		energy += re[i]*re[i] + im[i]*im[i]
	}
	norm := math.Sqrt(energy) + core.Epsilon

	wave := make(core.Waveform, b.n)
	for i := 0; i < b.n; i++ {
		wave[i] = complex(re[i]/norm, im[i]/norm)
	}
	return wave
}
