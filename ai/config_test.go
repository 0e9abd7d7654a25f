package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "all-minilm", cfg.EmbeddingModel)
	assert.Equal(t, 512, cfg.MaxLength)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, BackendOpenAI, cfg.Backend)
	})

	t.Run("with custom host and model", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	})

	t.Run("with local backend", func(t *testing.T) {
		cfg := NewConfig(
			WithBackend(BackendFastEmbed),
			WithEmbeddingModel("sentence-transformers/all-MiniLM-L6-v2"),
			WithCacheDir("/tmp/models"),
			WithMaxLength(256),
		)

		assert.Equal(t, BackendFastEmbed, cfg.Backend)
		assert.Equal(t, "/tmp/models", cfg.CacheDir)
		assert.Equal(t, 256, cfg.MaxLength)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name            string
		backend         string
		host            string
		expectedBackend string
		expectedHost    string
	}{
		{
			name:            "already has /v1",
			backend:         "openai",
			host:            "http://localhost:11434/v1",
			expectedBackend: BackendOpenAI,
			expectedHost:    "http://localhost:11434/v1",
		},
		{
			name:            "missing /v1",
			backend:         "openai",
			host:            "http://localhost:11434",
			expectedBackend: BackendOpenAI,
			expectedHost:    "http://localhost:11434/v1",
		},
		{
			name:            "has trailing slash",
			backend:         "openai",
			host:            "http://localhost:11434/",
			expectedBackend: BackendOpenAI,
			expectedHost:    "http://localhost:11434/v1",
		},
		{
			name:            "empty backend falls back to openai",
			backend:         "",
			host:            "",
			expectedBackend: BackendOpenAI,
			expectedHost:    "",
		},
		{
			name:            "backend is lowercased",
			backend:         " FastEmbed ",
			host:            "",
			expectedBackend: BackendFastEmbed,
			expectedHost:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Backend:       tt.backend,
				EmbeddingHost: tt.host,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedBackend, cfg.Backend)
			assert.Equal(t, tt.expectedHost, cfg.EmbeddingHost)
			assert.Equal(t, 512, cfg.MaxLength)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid openai config", func(t *testing.T) {
		cfg := &Config{
			Backend:        BackendOpenAI,
			EmbeddingHost:  "http://localhost:11434",
			EmbeddingModel: "all-minilm",
		}

		err := cfg.Validate()
		require.NoError(t, err)

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("fastembed does not need a host", func(t *testing.T) {
		cfg := &Config{
			Backend:        BackendFastEmbed,
			EmbeddingModel: "sentence-transformers/all-MiniLM-L6-v2",
		}

		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := &Config{
			Backend:        BackendOpenAI,
			EmbeddingModel: "all-minilm",
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := &Config{
			Backend:       BackendOpenAI,
			EmbeddingHost: "http://localhost:11434/v1",
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &Config{
			Backend:        "sentence-transformers",
			EmbeddingModel: "all-MiniLM-L6-v2",
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sentence-transformers")
	})
}
