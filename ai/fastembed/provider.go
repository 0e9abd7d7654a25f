//go:build cgo

package fastembed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
	"github.com/poiesic/cic/ai"
)

// modelMapping maps accepted model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"all-minilm":                             fastembed.AllMiniLML6V2,
	"all-minilm-l6-v2":                       fastembed.AllMiniLML6V2,
	"sentence-transformers/all-minilm-l6-v2": fastembed.AllMiniLML6V2,
	"fast-all-minilm-l6-v2":                  fastembed.AllMiniLML6V2,
	"baai/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"baai/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"fast-bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
}

// Provider implements ai.AIProvider with a local ONNX sentence-embedding model.
type Provider struct {
	embedder *Embedder
	logger   *slog.Logger
}

// Embedder implements ai.Embedder on top of a fastembed model.
// The underlying ONNX session is not safe for concurrent use.
type Embedder struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	batchSize int
	logger    *slog.Logger
}

// NewProvider loads the configured model, downloading it into CacheDir on first use.
//
// Returns ai.AIProvider interface to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	model, ok := modelMapping[strings.ToLower(config.EmbeddingModel)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, config.EmbeddingModel)
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             config.CacheDir,
		MaxLength:            config.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	logger := slog.Default().With("component", "fastembed-provider", "model", config.EmbeddingModel)
	return &Provider{
		embedder: &Embedder{
			model:     flagEmbed,
			batchSize: defaultBatchSize,
			logger:    logger,
		},
		logger: logger,
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases the ONNX session.
func (p *Provider) Close() error {
	p.logger.Debug("closing fastembed provider")
	p.embedder.mu.Lock()
	defer p.embedder.mu.Unlock()
	if p.embedder.model != nil {
		p.embedder.model.Destroy()
		p.embedder.model = nil
	}
	return nil
}

// EmbedText embeds a single text. Documents and queries use the same
// function so they land in the same waveform space.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch of texts in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil, ErrClosed
	}

	e.logger.Debug("generating embeddings", "count", len(texts))
	vectors, err := e.model.Embed(texts, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	return vectors, nil
}
