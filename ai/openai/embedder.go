package openai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/poiesic/cic/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// APIKeyEnv names the environment variable holding the API token. Local
// OpenAI-compatible servers usually need none.
const APIKeyEnv = "OPENAI_API_KEY"

// Embedder implements ai.Embedder on top of an OpenAI-compatible
// embeddings endpoint.
//
// The first vector it receives fixes the dimension; any later vector of a
// different size is rejected with ErrDimensionChanged.
type Embedder struct {
	client    embeddings.Embedder
	model     string
	dimension atomic.Int64
	logger    *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	token := os.Getenv(APIKeyEnv)
	if token == "" {
		token = "none"
	}
	llm, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openai client for %s: %w", config.EmbeddingHost, err)
	}

	// Newlines change the embedding of otherwise identical text.
	client, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		client: client,
		model:  config.EmbeddingModel,
		logger: slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates an embedder for config.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimension returns the vector dimension seen so far, or 0 before the
// first successful call.
func (e *Embedder) Dimension() int {
	return int(e.dimension.Load())
}

// EmbedText embeds a single text through the same path as EmbedTexts, so
// stored texts and queries see the same embedding function.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in order, one vector per text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("embedding texts", "count", len(texts))

	// The client rewrites its input in place when stripping newlines.
	input := make([]string, len(texts))
	copy(input, texts)

	vectors, err := e.client.EmbedDocuments(ctx, input)
	if err != nil {
		e.logger.Error("embedding request failed", "count", len(texts), "err", err)
		return nil, fmt.Errorf("embedding %d texts with %s: %w", len(texts), e.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrVectorCountMismatch, len(vectors), len(texts))
	}
	for i, vector := range vectors {
		if err := e.checkDimension(len(vector)); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return vectors, nil
}

// checkDimension records the first non-zero dimension and rejects any
// other. Empty vectors are left for the encoder to reject.
func (e *Embedder) checkDimension(d int) error {
	if d == 0 {
		return nil
	}
	if e.dimension.CompareAndSwap(0, int64(d)) {
		e.logger.Debug("embedding dimension", "dimension", d)
		return nil
	}
	if want := e.dimension.Load(); want != int64(d) {
		return fmt.Errorf("%w: model %s returned %d, expected %d", ErrDimensionChanged, e.model, d, want)
	}
	return nil
}
