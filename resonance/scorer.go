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


package resonance

import (
	"cmp"
	"math"
	"math/cmplx"
	"slices"
	"sync"

	"github.com/poiesic/cic/core"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is the max-normalized magnitude and the phase of every DFT bin.
type Spectrum struct {
	Magnitude []float64
	Phase     []float64
}

// Terms holds the two components of a resonance score.
type Terms struct {
	Magnitude float64
	Phase     float64
}

// Score combines the terms with phase weight lambda.
func (t Terms) Score(lambda float64) float64 {
	return t.Magnitude + lambda*t.Phase
}

// Scorer computes spectra of n-sample waveforms. It is safe for concurrent use.
type Scorer struct {
	n    int
	ffts sync.Pool
}

// NewScorer creates a scorer for waveforms of length n.
func NewScorer(n int) (*Scorer, error) {
	if err := core.ValidateLength(n); err != nil {
		return nil, err
	}
	s := &Scorer{n: n}
	// CmplxFFT keeps internal work space and is not safe for concurrent use.
	s.ffts.New = func() any {
		return fourier.NewCmplxFFT(n)
	}
	return s, nil
}

// Length returns the waveform length the scorer accepts.
func (s *Scorer) Length() int {
	return s.n
}

// Spectrum returns the normalized magnitude and phase of w.
func (s *Scorer) Spectrum(w core.Waveform) (Spectrum, error) {
	if len(w) != s.n {
		return Spectrum{}, &core.LengthMismatchError{Expected: s.n, Actual: len(w)}
	}

	fft := s.ffts.Get().(*fourier.CmplxFFT)
	coeffs := fft.Coefficients(nil, w)
	s.ffts.Put(fft)

	spectrum := Spectrum{
		Magnitude: make([]float64, s.n),
		Phase:     make([]float64, s.n),
	}
	var peak float64
	for i, c := range coeffs {
		m := cmplx.Abs(c)
		spectrum.Magnitude[i] = m
		spectrum.Phase[i] = cmplx.Phase(c)
		peak = max(peak, m)
	}
	scale := peak + core.Epsilon
	for i := range spectrum.Magnitude {
		spectrum.Magnitude[i] /= scale
	}
	return spectrum, nil
}

// Prepare computes the query spectrum and selects its k loudest bins.
func (s *Scorer) Prepare(q core.Waveform, k int) (*Query, error) {
	if err := core.ValidateScoring(k, 0); err != nil {
		return nil, err
	}
	spectrum, err := s.Spectrum(q)
	if err != nil {
		return nil, err
	}
	return &Query{
		scorer:   s,
		spectrum: spectrum,
		bins:     topBins(spectrum.Magnitude, k),
	}, nil
}

// Score computes the resonance score of m against query q.
func (s *Scorer) Score(q, m core.Waveform, k int, lambda float64) (float64, error) {
	if err := core.ValidateScoring(k, lambda); err != nil {
		return 0, err
	}
	if len(m) != len(q) {
		return 0, &core.LengthMismatchError{Expected: len(q), Actual: len(m)}
	}
	query, err := s.Prepare(q, k)
	if err != nil {
		return 0, err
	}
	terms, err := query.Terms(m)
	if err != nil {
		return 0, err
	}
	return terms.Score(lambda), nil
}

// Score is a convenience for one-off comparisons; it builds a scorer sized
// to q. Use a Scorer and Prepare when scoring many waveforms.
func Score(q, m core.Waveform, k int, lambda float64) (float64, error) {
	if len(m) != len(q) {
		return 0, &core.LengthMismatchError{Expected: len(q), Actual: len(m)}
	}
	if len(q) == 0 {
		return 0, core.ErrEmptyWaveform
	}
	s, err := NewScorer(len(q))
	if err != nil {
		return 0, err
	}
	return s.Score(q, m, k, lambda)
}

// Query is a prepared query: its spectrum and selected bins.
// It is read-only after Prepare and safe for concurrent use.
type Query struct {
	scorer   *Scorer
	spectrum Spectrum
	bins     []int
}

// Bins returns the selected bin indices, loudest last.
func (q *Query) Bins() []int {
	return slices.Clone(q.bins)
}

// Spectrum returns the query spectrum.
func (q *Query) Spectrum() Spectrum {
	return q.spectrum
}

// Terms computes the magnitude and phase terms of m against the query.
func (q *Query) Terms(m core.Waveform) (Terms, error) {
	spectrum, err := q.scorer.Spectrum(m)
	if err != nil {
		return Terms{}, err
	}
	return q.TermsFromSpectrum(spectrum), nil
}

// TermsFromSpectrum scores a spectrum that was computed earlier.
func (q *Query) TermsFromSpectrum(m Spectrum) Terms {
	var t Terms
	for _, b := range q.bins {
		t.Magnitude += q.spectrum.Magnitude[b] * m.Magnitude[b]
		t.Phase += math.Cos(q.spectrum.Phase[b] - m.Phase[b])
	}
	return t
}

// Score computes magnitude + lambda·phase for m.
func (q *Query) Score(m core.Waveform, lambda float64) (float64, error) {
	terms, err := q.Terms(m)
	if err != nil {
		return 0, err
	}
	return terms.Score(lambda), nil
}

// topBins returns the indices of the k largest magnitudes. The stable
// ascending sort keeps lower indices first among equal magnitudes, so taking
// the tail prefers higher indices on ties. k larger than the spectrum
// selects every bin.
func topBins(mag []float64, k int) []int {
	order := make([]int, len(mag))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(mag[a], mag[b])
	})
	if k >= len(order) {
		return order
	}
	return order[len(order)-k:]
}
