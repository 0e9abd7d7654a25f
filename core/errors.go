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
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates an unusable index or encoder setting.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrLengthMismatch indicates a waveform whose length differs from the configured N.
	ErrLengthMismatch = errors.New("waveform length mismatch")

	// ErrIndexOutOfRange indicates a store position outside [0, length).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidTopK indicates a non-positive result limit.
	ErrInvalidTopK = errors.New("top-k must be positive")

	// ErrEmptyWaveform indicates a waveform with no samples.
	ErrEmptyWaveform = errors.New("waveform cannot be empty")

	// ErrNonFiniteSample indicates a NaN or infinite waveform sample.
	ErrNonFiniteSample = errors.New("waveform contains non-finite sample")
)

// LengthMismatchError reports the expected and actual waveform lengths.
// It matches ErrLengthMismatch with errors.Is.
type LengthMismatchError struct {
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrLengthMismatch, e.Expected, e.Actual)
}

func (e *LengthMismatchError) Unwrap() error { return ErrLengthMismatch }
