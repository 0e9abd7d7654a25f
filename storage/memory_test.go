package storage

import (
	"sync"
	"testing"

	"github.com/poiesic/cic/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wave(n int, v complex128) core.Waveform {
	w := make(core.Waveform, n)
	for i := range w {
		w[i] = v
	}
	return w
}

func TestNewMemoryStore(t *testing.T) {
	_, err := NewMemoryStore(0)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	s, err := NewMemoryStore(4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.N())
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_AddGet(t *testing.T) {
	s, err := NewMemoryStore(4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		pos, err := s.Add(wave(4, complex(float64(i), -float64(i))))
		require.NoError(t, err)
		assert.Equal(t, i, pos)
	}
	assert.Equal(t, 3, s.Len())

	got, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, wave(4, complex(2, -2)), got)

	// Get returns a copy.
	got[0] = 99
	again, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, complex(2, -2), again[0])
}

func TestMemoryStore_Complex64Coercion(t *testing.T) {
	s, err := NewMemoryStore(1)
	require.NoError(t, err)

	_, err = s.Add(core.Waveform{complex(0.1, 0.2)})
	require.NoError(t, err)

	got, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, complex128(complex64(complex(0.1, 0.2))), got[0])
	assert.InDelta(t, 0.1, real(got[0]), 1e-7)
}

func TestMemoryStore_LengthMismatch(t *testing.T) {
	s, err := NewMemoryStore(4)
	require.NoError(t, err)

	_, err = s.Add(wave(3, 1))
	var lm *core.LengthMismatchError
	require.ErrorAs(t, err, &lm)
	assert.Equal(t, 4, lm.Expected)
	assert.Equal(t, 3, lm.Actual)
	assert.Equal(t, 0, s.Len())

	_, err = s.AddBatch([]core.Waveform{wave(4, 1), wave(5, 1)})
	assert.ErrorIs(t, err, core.ErrLengthMismatch)
	assert.Equal(t, 0, s.Len(), "batch is all or nothing")
}

func TestMemoryStore_GetOutOfRange(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)
	_, err = s.Add(wave(2, 1))
	require.NoError(t, err)

	for _, i := range []int{-1, 1, 100} {
		_, err := s.Get(i)
		assert.ErrorIs(t, err, core.ErrIndexOutOfRange, "position %d", i)
	}
}

func TestMemoryStore_AddBatch(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)
	_, err = s.Add(wave(2, 1))
	require.NoError(t, err)

	first, err := s.AddBatch([]core.Waveform{wave(2, 2), wave(2, 3)})
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 3, s.Len())

	got, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, wave(2, 3), got)
}

func TestMemoryStore_Scan(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s.Add(wave(2, complex(float64(i), 0)))
		require.NoError(t, err)
	}

	var positions []int
	s.Scan(func(pos int, w core.Waveform) bool {
		positions = append(positions, pos)
		assert.Equal(t, complex(float64(pos), 0), w[0])
		return true
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, positions)

	positions = nil
	s.Scan(func(pos int, w core.Waveform) bool {
		positions = append(positions, pos)
		return pos < 1
	})
	assert.Equal(t, []int{0, 1}, positions, "stops when fn returns false")
}

func TestMemoryStore_ScanIgnoresConcurrentAppends(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Add(wave(2, 1))
		require.NoError(t, err)
	}

	seen := 0
	s.Scan(func(pos int, w core.Waveform) bool {
		_, err := s.Add(wave(2, 2))
		require.NoError(t, err)
		seen++
		return true
	})
	assert.Equal(t, 3, seen)
	assert.Equal(t, 6, s.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s, err := NewMemoryStore(8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = s.Add(wave(8, 1))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.Scan(func(pos int, w core.Waveform) bool {
					return w[0] == 1
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, s.Len())
	assert.Len(t, s.Snapshot(), 200)
}
