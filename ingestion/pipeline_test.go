package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/cic/ai/mock"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/index"
	"github.com/poiesic/cic/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, opts ...index.Option) *index.Index {
	t.Helper()
	opts = append([]index.Option{index.WithLength(32)}, opts...)
	idx, err := index.NewIndex(context.Background(), mock.NewMockEmbedder(), opts...)
	require.NoError(t, err)
	return idx
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text number %d", i)
	}
	return out
}

// failingProcessor fails every batch that contains failOn.
type failingProcessor struct {
	inner  processor
	failOn string
	calls  atomic.Int32
}

func (f *failingProcessor) process(ctx context.Context, batch []string) ([]core.Waveform, error) {
	f.calls.Add(1)
	for _, text := range batch {
		if text == f.failOn {
			return nil, errors.New("encoding failed")
		}
	}
	return f.inner.process(ctx, batch)
}

func TestNewPipeline(t *testing.T) {
	idx := newTestIndex(t)

	t.Run("valid configuration", func(t *testing.T) {
		p, err := NewPipeline(idx)
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, DefaultBatchSize, p.batchSize)
	})

	t.Run("with options", func(t *testing.T) {
		p, err := NewPipeline(idx, WithPoolSize(4), WithBatchSize(3), WithLogger(slog.Default()))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 4, p.pool.Cap())
		assert.Equal(t, 3, p.batchSize)
	})

	t.Run("pool size below one is clamped", func(t *testing.T) {
		p, err := NewPipeline(idx, WithPoolSize(0))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 1, p.pool.Cap())
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		p, err := NewPipeline(idx, WithLogger(nil))
		require.NoError(t, err)
		defer p.Release()
		assert.NotNil(t, p.logger)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, err := NewPipeline(idx, WithBatchSize(0))
		assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewPipeline(nil)
		assert.Equal(t, ErrIndexRequired, err)
	})
}

func TestIngest_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	p, err := NewPipeline(idx, WithPoolSize(4), WithBatchSize(3))
	require.NoError(t, err)
	defer p.Release()

	input := texts(20)
	positions, err := p.Ingest(ctx, input)
	require.NoError(t, err)
	require.Len(t, positions, 20)
	assert.Equal(t, 20, idx.Len())

	for i, text := range input {
		assert.Equal(t, i, positions[i])
		want, err := idx.Encode(ctx, text)
		require.NoError(t, err)
		got, err := idx.Get(i)
		require.NoError(t, err)
		for n := range want {
			assert.InDelta(t, real(want[n]), real(got[n]), 1e-6)
			assert.InDelta(t, imag(want[n]), imag(got[n]), 1e-6)
		}
	}
}

func TestIngest_AppendsAfterExisting(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	_, err := idx.AddText(ctx, "already here")
	require.NoError(t, err)

	p, err := NewPipeline(idx, WithBatchSize(2))
	require.NoError(t, err)
	defer p.Release()

	positions, err := p.Ingest(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, positions)
}

func TestIngest_Empty(t *testing.T) {
	idx := newTestIndex(t)
	p, err := NewPipeline(idx)
	require.NoError(t, err)
	defer p.Release()

	positions, err := p.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, 0, idx.Len())
}

func TestIngest_FailedBatchKeepsPrefix(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	p, err := NewPipeline(idx, WithPoolSize(3), WithBatchSize(4))
	require.NoError(t, err)
	defer p.Release()

	input := texts(12)
	failing := &failingProcessor{inner: p.proc, failOn: input[5]}
	p.proc = failing

	positions, err := p.Ingest(ctx, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 1")
	assert.Equal(t, []int{0, 1, 2, 3}, positions)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, int32(3), failing.calls.Load())
}

func TestIngest_Journaled(t *testing.T) {
	ctx := context.Background()
	journal, backend, err := badger.NewMemoryJournal()
	require.NoError(t, err)
	defer func() {
		journal.Close()
		backend.Close()
	}()

	idx := newTestIndex(t, index.WithJournal(journal))
	p, err := NewPipeline(idx, WithBatchSize(2))
	require.NoError(t, err)
	defer p.Release()

	input := texts(5)
	_, err = p.Ingest(ctx, input)
	require.NoError(t, err)

	count, err := journal.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	for i, text := range input {
		doc, err := journal.GetDocument(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, text, doc.Text)
	}
}

func TestIngestReader(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	p, err := NewPipeline(idx)
	require.NoError(t, err)
	defer p.Release()

	positions, err := p.IngestReader(ctx, strings.NewReader("first line\n\n   \n  second line  \nthird"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions)

	want, err := idx.Encode(ctx, "second line")
	require.NoError(t, err)
	results, err := idx.SearchWave(ctx, want, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Position)
}

func TestIngest_AfterRelease(t *testing.T) {
	p, err := NewPipeline(newTestIndex(t))
	require.NoError(t, err)
	p.Release()

	_, err = p.Ingest(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrPipelineReleased)
}
