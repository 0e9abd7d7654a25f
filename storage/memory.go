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


package storage

import (
	"fmt"
	"sync"

	"github.com/poiesic/cic/core"
)

// MemoryStore is an append-only arena of fixed-length waveforms.
// Samples are held as complex64 in one contiguous slice, n per entry, so an
// entry's position is also its offset divided by n. Positions are permanent.
type MemoryStore struct {
	mu    sync.RWMutex
	n     int
	count int
	data  []complex64
}

// NewMemoryStore creates an empty store for waveforms of length n.
func NewMemoryStore(n int) (*MemoryStore, error) {
	if err := core.ValidateLength(n); err != nil {
		return nil, err
	}
	return &MemoryStore{n: n}, nil
}

// N returns the waveform length.
func (s *MemoryStore) N() int {
	return s.n
}

// Len returns the number of stored waveforms.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Add appends a waveform and returns its position.
func (s *MemoryStore) Add(wave core.Waveform) (int, error) {
	if len(wave) != s.n {
		return 0, &core.LengthMismatchError{Expected: s.n, Actual: len(wave)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = appendWave(s.data, wave)
	pos := s.count
	s.count++
	return pos, nil
}

// AddBatch appends waveforms in order and returns the position of the first.
// Either all waveforms are appended or, on a length mismatch, none are.
func (s *MemoryStore) AddBatch(waves []core.Waveform) (int, error) {
	for i, wave := range waves {
		if len(wave) != s.n {
			return 0, fmt.Errorf("waveform %d: %w", i, &core.LengthMismatchError{Expected: s.n, Actual: len(wave)})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.count
	s.data = growArena(s.data, len(waves)*s.n)
	for _, wave := range waves {
		s.data = appendWave(s.data, wave)
	}
	s.count += len(waves)
	return first, nil
}

// Get returns a copy of the waveform at position i.
func (s *MemoryStore) Get(i int) (core.Waveform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= s.count {
		return nil, fmt.Errorf("%w: position %d, length %d", core.ErrIndexOutOfRange, i, s.count)
	}
	wave := make(core.Waveform, s.n)
	widen(wave, s.data[i*s.n:(i+1)*s.n])
	return wave, nil
}

// Scan calls fn for every waveform in position order until fn returns false.
// It iterates the entries present when Scan was called; concurrent appends
// are not observed. The waveform passed to fn is reused between calls and
// must be copied if retained.
func (s *MemoryStore) Scan(fn func(position int, wave core.Waveform) bool) {
	s.mu.RLock()
	count := s.count
	data := s.data[:count*s.n]
	s.mu.RUnlock()

	// Appends never write below count*n, so the captured prefix stays
	// valid even if the arena is reallocated.
	buf := make(core.Waveform, s.n)
	for pos := 0; pos < count; pos++ {
		widen(buf, data[pos*s.n:(pos+1)*s.n])
		if !fn(pos, buf) {
			return
		}
	}
}

// Snapshot returns copies of all stored waveforms in position order.
func (s *MemoryStore) Snapshot() []core.Waveform {
	waves := make([]core.Waveform, 0, s.Len())
	s.Scan(func(_ int, wave core.Waveform) bool {
		waves = append(waves, append(core.Waveform(nil), wave...))
		return true
	})
	return waves
}

func appendWave(data []complex64, wave core.Waveform) []complex64 {
	for _, v := range wave {
		data = append(data, complex64(v))
	}
	return data
}

func growArena(data []complex64, extra int) []complex64 {
	if cap(data)-len(data) >= extra {
		return data
	}
	grown := make([]complex64, len(data), len(data)+extra)
	copy(grown, data)
	return grown
}

func widen(dst core.Waveform, src []complex64) {
	for i, v := range src {
		dst[i] = complex128(v)
	}
}
