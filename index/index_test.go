package index

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/cic/ai/mock"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/encoder"
	"github.com/poiesic/cic/resonance"
	"github.com/poiesic/cic/storage"
	"github.com/poiesic/cic/storage/badger"
	"github.com/poiesic/cic/storage/wavefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	idx, err := NewIndex(context.Background(), mock.NewMockEmbedder(), opts...)
	require.NoError(t, err)
	return idx
}

func newTestJournal(t *testing.T) storage.Journal {
	t.Helper()
	journal, backend, err := badger.NewMemoryJournal()
	require.NoError(t, err)
	t.Cleanup(func() {
		journal.Close()
		backend.Close()
	})
	return journal
}

func TestNewIndex_Defaults(t *testing.T) {
	idx := newTestIndex(t)
	assert.Equal(t, DefaultLength, idx.Length())
	assert.Equal(t, DefaultTopBins, idx.TopBins())
	assert.Equal(t, DefaultLambda, idx.Lambda())
	assert.Equal(t, encoder.ModeEmbed, idx.Mode())
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, idx.Journal())
}

func TestNewIndex_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero length", WithLength(0)},
		{"zero top bins", WithTopBins(0)},
		{"NaN lambda", WithLambda(math.NaN())},
		{"infinite lambda", WithLambda(math.Inf(-1))},
		{"unknown mode", WithModeName("fourier")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIndex(ctx, mock.NewMockEmbedder(), tt.opt)
			assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
		})
	}

	_, err := NewIndex(ctx, nil)
	assert.ErrorIs(t, err, encoder.ErrEmbedderRequired)

	idx, err := NewIndex(ctx, nil, WithModeName("char"), WithLength(64))
	require.NoError(t, err)
	assert.Equal(t, encoder.ModeChar, idx.Mode())
}

func TestAddText(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(64))

	pos, err := idx.AddText(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	pos, err = idx.AddText(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 2, idx.Len())

	stored, err := idx.Get(1)
	require.NoError(t, err)
	encoded, err := idx.Encode(ctx, "second")
	require.NoError(t, err)
	for i := range encoded {
		assert.InDelta(t, real(encoded[i]), real(stored[i]), 1e-6)
		assert.InDelta(t, imag(encoded[i]), imag(stored[i]), 1e-6)
	}
}

func TestAddTexts_ConsecutivePositions(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(64))
	_, err := idx.AddText(ctx, "existing")
	require.NoError(t, err)

	positions, err := idx.AddTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions)
	assert.Equal(t, 3, idx.Len())
}

func TestAddTexts_StopsAtFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("provider down")
	m := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, boom
		}
		return mock.GenerateDeterministicVector(text, 16), nil
	})
	idx, err := NewIndex(ctx, m, WithLength(32))
	require.NoError(t, err)

	positions, err := idx.AddTexts(ctx, []string{"ok", "bad", "never"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0}, positions)
	assert.Equal(t, 1, idx.Len())
}

func TestAddEncoded_Validation(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(8))

	_, err := idx.AddEncoded(ctx, nil, []core.Waveform{make(core.Waveform, 4)})
	assert.ErrorIs(t, err, core.ErrLengthMismatch)

	bad := make(core.Waveform, 8)
	bad[3] = complex(math.NaN(), 0)
	_, err = idx.AddEncoded(ctx, nil, []core.Waveform{bad})
	assert.ErrorIs(t, err, core.ErrNonFiniteSample)

	_, err = idx.AddEncoded(ctx, []string{"a", "b"}, []core.Waveform{make(core.Waveform, 8)})
	assert.ErrorIs(t, err, ErrTextCountMismatch)

	positions, err := idx.AddEncoded(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, 0, idx.Len())
}

func TestSearch_RanksExactTextFirst(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(128))

	texts := []string{
		"the cat sat on the mat",
		"stock markets rallied on friday",
		"a recipe for sourdough bread",
		"quantum entanglement explained",
		"how to change a bicycle tire",
	}
	_, err := idx.AddTexts(ctx, texts)
	require.NoError(t, err)

	for i, text := range texts {
		results, err := idx.Search(ctx, text, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, i, results[0].Position, "query %q", text)
	}
}

func TestSearch_Ordering(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(64))

	// Duplicates score identically and must come back in position order.
	_, err := idx.AddTexts(ctx, []string{"dup", "other", "dup", "another", "dup"})
	require.NoError(t, err)

	results, err := idx.Search(ctx, "dup", 5)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		assert.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			assert.Less(t, prev.Position, cur.Position)
		}
	}
	assert.Equal(t, []int{0, 2, 4}, []int{results[0].Position, results[1].Position, results[2].Position})
}

func TestSearch_Limits(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(32))

	results, err := idx.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	_, err = idx.AddTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	results, err = idx.Search(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = idx.Search(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	for _, topK := range []int{0, -1} {
		_, err = idx.Search(ctx, "a", topK)
		assert.ErrorIs(t, err, core.ErrInvalidTopK)
	}
}

func TestSearch_CancelledContext(t *testing.T) {
	idx := newTestIndex(t, WithLength(32))
	_, err := idx.AddText(context.Background(), "a")
	require.NoError(t, err)
	wave, err := idx.Encode(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.SearchWave(ctx, wave, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_ConcreteScenario(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []string{"embed", "char"} {
		t.Run(mode, func(t *testing.T) {
			idx := newTestIndex(t, WithLength(128), WithTopBins(16), WithLambda(0.5), WithModeName(mode))

			w1, err := idx.Encode(ctx, "the cat sat on the mat")
			require.NoError(t, err)
			w2, err := idx.Encode(ctx, "completely unrelated text")
			require.NoError(t, err)

			self, err := resonance.Score(w1, w1, 16, 0.5)
			require.NoError(t, err)
			other, err := resonance.Score(w1, w2, 16, 0.5)
			require.NoError(t, err)
			assert.Greater(t, self, other)

			_, err = idx.AddTexts(ctx, []string{"completely unrelated text", "the cat sat on the mat"})
			require.NoError(t, err)
			results, err := idx.SearchWave(ctx, w1, 2)
			require.NoError(t, err)
			assert.Equal(t, 1, results[0].Position)
			assert.InDelta(t, self, results[0].Score, 1e-4)
		})
	}
}

type recordingMonitor struct {
	query    string
	encoded  int
	scored   []int
	finished []core.Result
}

func (m *recordingMonitor) Start(query string) { m.query = query }
func (m *recordingMonitor) AfterQueryEncoding(wave core.Waveform, _ time.Duration) {
	m.encoded = wave.Len()
}
func (m *recordingMonitor) EntryScored(position int, _ float64) {
	m.scored = append(m.scored, position)
}
func (m *recordingMonitor) Finish(results []core.Result, _ time.Duration) {
	m.finished = results
}

func TestSearchWithMonitor(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(32))
	_, err := idx.AddTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := idx.SearchWithMonitor(ctx, "b", 2, monitor)
	require.NoError(t, err)

	assert.Equal(t, "b", monitor.query)
	assert.Equal(t, 32, monitor.encoded)
	assert.Equal(t, []int{0, 1, 2}, monitor.scored)
	assert.Equal(t, results, monitor.finished)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.cic")

	idx := newTestIndex(t, WithLength(64))
	_, err := idx.AddTexts(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.NoError(t, idx.Save(path, wavefile.WithCompression()))

	fresh := newTestIndex(t, WithLength(64))
	n, err := fresh.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, idx.Len(), fresh.Len())

	for pos := 0; pos < idx.Len(); pos++ {
		want, err := idx.Get(pos)
		require.NoError(t, err)
		got, err := fresh.Get(pos)
		require.NoError(t, err)
		for i := range want {
			assert.InDelta(t, real(want[i]), real(got[i]), 1e-6)
			assert.InDelta(t, imag(want[i]), imag(got[i]), 1e-6)
		}
	}

	// Load appends.
	n, err = fresh.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 6, fresh.Len())

	results, err := fresh.Search(ctx, "beta", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, []int{results[0].Position, results[1].Position})
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "short.cic")

	small := newTestIndex(t, WithLength(16))
	_, err := small.AddText(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, small.Save(path))

	big := newTestIndex(t, WithLength(32))
	_, err = big.Load(ctx, path)
	assert.ErrorIs(t, err, core.ErrLengthMismatch)
	assert.Equal(t, 0, big.Len())

	_, err = big.Load(ctx, filepath.Join(dir, "missing.cic"))
	assert.Error(t, err)
}

func TestJournal_Replay(t *testing.T) {
	ctx := context.Background()
	journal := newTestJournal(t)

	idx := newTestIndex(t, WithLength(64), WithJournal(journal), WithModel("all-minilm"))
	_, err := idx.AddTexts(ctx, []string{"one", "two", "three"})
	require.NoError(t, err)

	count, err := journal.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	doc, err := journal.GetDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "two", doc.Text)
	assert.Equal(t, core.IDFromContent("two"), doc.Id)

	config, err := journal.LoadConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.IndexConfig{Length: 64, Mode: "embed", Model: "all-minilm"}, *config)

	replayed := newTestIndex(t, WithLength(64), WithJournal(journal), WithModel("all-minilm"))
	assert.Equal(t, 3, replayed.Len())

	want, err := idx.Get(2)
	require.NoError(t, err)
	got, err := replayed.Get(2)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	pos, err := replayed.AddText(ctx, "four")
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
}

func TestJournal_ConfigMismatch(t *testing.T) {
	journal := newTestJournal(t)
	_ = newTestIndex(t, WithLength(64), WithJournal(journal))

	_, err := NewIndex(context.Background(), mock.NewMockEmbedder(), WithLength(128), WithJournal(journal))
	assert.ErrorIs(t, err, storage.ErrConfigMismatch)

	_, err = NewIndex(context.Background(), nil, WithLength(64), WithModeName("char"), WithJournal(journal))
	assert.ErrorIs(t, err, storage.ErrConfigMismatch)
}

func TestJournal_LoadIsJournaled(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "waves.cic")

	source := newTestIndex(t, WithLength(32))
	_, err := source.AddTexts(ctx, []string{"x", "y"})
	require.NoError(t, err)
	require.NoError(t, source.Save(path))

	journal := newTestJournal(t)
	idx := newTestIndex(t, WithLength(32), WithJournal(journal))
	_, err = idx.Load(ctx, path)
	require.NoError(t, err)

	docs, err := journal.GetDocuments(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Empty(t, docs[0].Text)
	assert.Equal(t, 1, docs[1].Position)
}

// countdownContext reports cancellation once Err has been called more than
// a fixed number of times.
type countdownContext struct {
	context.Context
	remaining atomic.Int64
}

func (c *countdownContext) Err() error {
	if c.remaining.Add(-1) < 0 {
		return context.Canceled
	}
	return nil
}

func TestAddEncoded_PartialJournalAppendKeepsStoreInStep(t *testing.T) {
	const n = 4096
	ctx := context.Background()
	journal := newTestJournal(t)
	idx := newTestIndex(t, WithLength(n), WithModeName("char"), WithJournal(journal))

	waves := make([]core.Waveform, 600)
	for i := range waves {
		waves[i] = make(core.Waveform, n)
		waves[i][i%n] = 1
	}

	cancelling := &countdownContext{Context: ctx}
	cancelling.remaining.Store(500)
	positions, err := idx.AddEncoded(cancelling, nil, waves)
	require.ErrorIs(t, err, context.Canceled)
	require.NotEmpty(t, positions, "a large append commits in pieces")
	require.Less(t, len(positions), len(waves))
	for i, pos := range positions {
		assert.Equal(t, i, pos)
	}

	count, err := journal.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, idx.Len())
	assert.Equal(t, len(positions), idx.Len())

	got, err := idx.Get(len(positions) - 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, real(got[(len(positions)-1)%n]), 1e-6)

	pos, err := idx.AddText(ctx, "after the failure")
	require.NoError(t, err)
	assert.Equal(t, len(positions), pos)

	replayed := newTestIndex(t, WithLength(n), WithModeName("char"), WithJournal(journal))
	assert.Equal(t, idx.Len(), replayed.Len())
}

func TestAddEncoded_ConcurrentPositionsMatchStore(t *testing.T) {
	const n = 32
	ctx := context.Background()
	idx := newTestIndex(t, WithLength(n), WithModeName("char"), WithJournal(newTestJournal(t)))

	var wg sync.WaitGroup
	positions := make([]int, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wave := make(core.Waveform, n)
			wave[i] = 1
			added, err := idx.AddEncoded(ctx, nil, []core.Waveform{wave})
			errs[i] = err
			if err == nil {
				positions[i] = added[0]
			}
		}()
	}
	wg.Wait()

	require.Equal(t, n, idx.Len())
	for i := range n {
		require.NoError(t, errs[i])
		got, err := idx.Get(positions[i])
		require.NoError(t, err)
		assert.InDelta(t, 1.0, real(got[i]), 1e-6, "wave %d stored at position %d", i, positions[i])
	}
}
