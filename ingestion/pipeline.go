package ingestion

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/index"
)

// DefaultBatchSize is the number of texts encoded per task.
const DefaultBatchSize = 32

// Pipeline encodes texts concurrently and appends them to an index in order.
type Pipeline struct {
	index     *index.Index
	pool      *ants.Pool
	batchSize int
	proc      processor
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent encoding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many texts each task encodes.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be at least 1, got %d", core.ErrInvalidConfiguration, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline over idx.
func NewPipeline(idx *index.Index, opts ...Option) (*Pipeline, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		index:     idx,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	p.proc = newEncodingProcessor(idx, p.logger)

	return p, nil
}

type batchResult struct {
	waves []core.Waveform
	err   error
}

// Ingest encodes texts and appends them to the index in input order.
// It returns the positions of the appended texts. On error the returned
// positions cover the batches appended before the failing one.
func (p *Pipeline) Ingest(ctx context.Context, texts []string) ([]int, error) {
	if p.pool.IsClosed() {
		return nil, ErrPipelineReleased
	}
	if len(texts) == 0 {
		return []int{}, nil
	}

	sw := core.StartStopwatch()
	batches := make([][]string, 0, (len(texts)+p.batchSize-1)/p.batchSize)
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		batches = append(batches, texts[start:end])
	}

	results := make([]batchResult, len(batches))
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			waves, err := p.proc.process(ctx, batch)
			results[i] = batchResult{waves: waves, err: err}
		})
		if err != nil {
			wg.Done()
			results[i] = batchResult{err: fmt.Errorf("submitting batch %d: %w", i, err)}
		}
	}
	wg.Wait()

	positions := make([]int, 0, len(texts))
	for i, result := range results {
		if result.err != nil {
			p.logger.Error("batch failed, stopping ingestion",
				"batch", i, "appended", len(positions), "err", result.err)
			return positions, fmt.Errorf("batch %d: %w", i, result.err)
		}
		added, err := p.index.AddEncoded(ctx, batches[i], result.waves)
		positions = append(positions, added...)
		if err != nil {
			return positions, fmt.Errorf("appending batch %d: %w", i, err)
		}
	}

	p.logger.Info("ingested texts", "texts", len(positions), "batches", len(batches), "ms", sw.Milliseconds())
	return positions, nil
}

// IngestReader ingests every non-blank line of r.
func (p *Pipeline) IngestReader(ctx context.Context, r io.Reader) ([]int, error) {
	var texts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return p.Ingest(ctx, texts)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
