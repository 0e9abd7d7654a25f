package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/cic/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingServer struct {
	mu       sync.Mutex
	requests []embeddingRequest
	headers  []http.Header
	// vector builds the response vector for one input text.
	vector func(text string) []float32
	// drop removes that many vectors from each response.
	drop int
}

func (s *embeddingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/embeddings") {
		http.NotFound(w, r)
		return
	}
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	type item struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]item, 0, len(req.Input))
	for i, text := range req.Input[:len(req.Input)-s.drop] {
		data = append(data, item{Object: "embedding", Embedding: s.vector(text), Index: i})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
	})
}

func lengthVector(text string) []float32 {
	return []float32{float32(len(text)), 1, 0.5}
}

func newTestEmbedder(t *testing.T, server *embeddingServer) *Embedder {
	t.Helper()
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	embedder, err := newEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(ts.URL),
		ai.WithEmbeddingModel("all-minilm"),
	))
	require.NoError(t, err)
	return embedder
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	server := &embeddingServer{vector: lengthVector}
	embedder := newTestEmbedder(t, server)

	texts := []string{"one", "three\nlines", "seven"}
	vectors, err := embedder.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{3, 1, 0.5}, vectors[0])
	assert.Equal(t, []float32{11, 1, 0.5}, vectors[1])
	assert.Equal(t, 3, embedder.Dimension())

	require.Len(t, server.requests, 1)
	assert.Equal(t, "all-minilm", server.requests[0].Model)
	assert.Equal(t, []string{"one", "three lines", "seven"}, server.requests[0].Input)
	assert.Equal(t, "three\nlines", texts[1], "caller's texts are left untouched")

	vector, err := embedder.EmbedText(context.Background(), "seven")
	require.NoError(t, err)
	assert.Equal(t, vectors[2], vector)
}

func TestEmbedder_EmptyInput(t *testing.T) {
	server := &embeddingServer{vector: lengthVector}
	embedder := newTestEmbedder(t, server)

	vectors, err := embedder.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, server.requests)
}

func TestEmbedder_DimensionChanged(t *testing.T) {
	server := &embeddingServer{vector: func(text string) []float32 {
		return make([]float32, len(text))
	}}
	embedder := newTestEmbedder(t, server)

	_, err := embedder.EmbedText(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, 4, embedder.Dimension())

	_, err = embedder.EmbedText(context.Background(), "abcdef")
	assert.ErrorIs(t, err, ErrDimensionChanged)

	_, err = embedder.EmbedTexts(context.Background(), []string{"wxyz", "ab"})
	assert.ErrorIs(t, err, ErrDimensionChanged)
}

func TestEmbedder_ShortResponse(t *testing.T) {
	server := &embeddingServer{vector: lengthVector, drop: 1}
	embedder := newTestEmbedder(t, server)

	_, err := embedder.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedder_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(ts.URL)))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all-minilm")
}

func TestEmbedder_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv(APIKeyEnv, "secret-token")
	server := &embeddingServer{vector: lengthVector}
	embedder := newTestEmbedder(t, server)

	_, err := embedder.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, server.headers, 1)
	assert.Equal(t, "Bearer secret-token", server.headers[0].Get("Authorization"))
}

func TestNewProvider(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingHost(""), ai.WithEmbeddingModel("")))
		assert.Error(t, err)
	})

	t.Run("embedder and close", func(t *testing.T) {
		provider, err := NewProvider(ai.NewConfig())
		require.NoError(t, err)
		assert.NotNil(t, provider.Embedder())
		assert.NoError(t, provider.Close())
	})
}
