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


package core

import (
	"fmt"
	"math"
	"math/cmplx"
)

// ValidateWaveform validates a waveform against the configured length n.
//
// Validation rules:
//   - Waveform must not be empty
//   - Length must equal n
//   - Every sample must be finite
//
// NOT validated:
//   - Unit energy (degenerate inputs legitimately produce near-zero waveforms)
func ValidateWaveform(wave Waveform, n int) error {
	if len(wave) == 0 {
		return ErrEmptyWaveform
	}

	if len(wave) != n {
		return &LengthMismatchError{Expected: n, Actual: len(wave)}
	}

	for i, v := range wave {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return fmt.Errorf("%w: sample %d", ErrNonFiniteSample, i)
		}
	}

	return nil
}

// ValidateLength checks that a configured waveform length is usable.
func ValidateLength(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: waveform length must be at least 1, got %d", ErrInvalidConfiguration, n)
	}
	return nil
}

// ValidateScoring checks the top-bin count and phase weight used by resonance scoring.
func ValidateScoring(k int, lambda float64) error {
	if k < 1 {
		return fmt.Errorf("%w: top bins must be at least 1, got %d", ErrInvalidConfiguration, k)
	}
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		return fmt.Errorf("%w: phase weight must be finite, got %v", ErrInvalidConfiguration, lambda)
	}
	return nil
}
