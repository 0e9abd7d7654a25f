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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Supported embedding backends.
const (
	// BackendOpenAI talks to an OpenAI-compatible embeddings API (Ollama, LocalAI, vLLM, OpenAI).
	BackendOpenAI = "openai"

	// BackendFastEmbed runs a local ONNX sentence-embedding model in process.
	BackendFastEmbed = "fastembed"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Backend selects the embedding implementation: "openai" or "fastembed".
	Backend string

	// EmbeddingHost is the base URL for the embedding service API.
	// Only used by the openai backend.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "all-minilm" (openai backend), "sentence-transformers/all-MiniLM-L6-v2" (fastembed)
	EmbeddingModel string

	// CacheDir is where the fastembed backend keeps downloaded model files.
	CacheDir string

	// MaxLength is the maximum token sequence length for the fastembed backend.
	// Default: 512
	MaxLength int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend sets the embedding backend.
func WithBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithCacheDir sets the local model cache directory.
func WithCacheDir(dir string) ConfigOption {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithMaxLength sets the maximum token sequence length for local models.
func WithMaxLength(n int) ConfigOption {
	return func(c *Config) {
		c.MaxLength = n
	}
}

// DefaultConfig returns a Config with sensible defaults for a local OpenAI-compatible service.
// The default model is the Ollama build of all-MiniLM-L6-v2.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendOpenAI,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "all-minilm",
		CacheDir:       "local_cache",
		MaxLength:      512,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
//
// Example with the local backend:
//
//	cfg := NewConfig(
//	    WithBackend(BackendFastEmbed),
//	    WithEmbeddingModel("sentence-transformers/all-MiniLM-L6-v2"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lowercases the backend name and adds the /v1 suffix to the host if missing,
// which is required by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendOpenAI
	}
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.MaxLength <= 0 {
		c.MaxLength = 512
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Backend {
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
	case BackendFastEmbed:
	default:
		return fmt.Errorf("ai config: unknown backend %q (use %q or %q)", c.Backend, BackendOpenAI, BackendFastEmbed)
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	return nil
}
