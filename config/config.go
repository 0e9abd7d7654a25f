// Package config loads application configuration for the cic command.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/cic/ai"
	"github.com/poiesic/cic/core"
	"github.com/poiesic/cic/encoder"
	"github.com/poiesic/cic/index"
)

// Config is the top-level application configuration.
type Config struct {
	Index     IndexConfig     `koanf:"index"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Storage   StorageConfig   `koanf:"storage"`
	Log       LogConfig       `koanf:"log"`
}

// IndexConfig holds the resonance parameters.
type IndexConfig struct {
	Length  int     `koanf:"length"`   // Waveform length N
	TopBins int     `koanf:"top_bins"` // Frequency bins compared per query (K)
	Lambda  float64 `koanf:"lambda"`   // Phase term weight
	Mode    string  `koanf:"mode"`     // "embed" or "char"
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Backend   string `koanf:"backend"`
	Host      string `koanf:"host"`
	Model     string `koanf:"model"`
	CacheDir  string `koanf:"cache_dir"`
	MaxLength int    `koanf:"max_length"`
}

// StorageConfig locates the journal database.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn or error
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Index: IndexConfig{
			Length:  index.DefaultLength,
			TopBins: index.DefaultTopBins,
			Lambda:  index.DefaultLambda,
			Mode:    encoder.ModeEmbed.String(),
		},
		Embedding: EmbeddingConfig{
			Backend:   aiDefaults.Backend,
			Host:      aiDefaults.EmbeddingHost,
			Model:     aiDefaults.EmbeddingModel,
			CacheDir:  aiDefaults.CacheDir,
			MaxLength: aiDefaults.MaxLength,
		},
		Storage: StorageConfig{Path: "cic.db"},
		Log:     LogConfig{Level: "info"},
	}
}

// Validate checks the index and log settings. Embedding settings are
// checked by AIConfig, since char mode does not need them.
func (c *Config) Validate() error {
	if err := core.ValidateLength(c.Index.Length); err != nil {
		return err
	}
	if err := core.ValidateScoring(c.Index.TopBins, c.Index.Lambda); err != nil {
		return err
	}
	if _, err := encoder.ParseMode(c.Index.Mode); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage path is required", core.ErrInvalidConfiguration)
	}
	return nil
}

// IndexOptions converts the index section into index options.
func (c *Config) IndexOptions() []index.Option {
	return []index.Option{
		index.WithLength(c.Index.Length),
		index.WithTopBins(c.Index.TopBins),
		index.WithLambda(c.Index.Lambda),
		index.WithModeName(c.Index.Mode),
		index.WithModel(c.Embedding.Model),
	}
}

// AIConfig converts the embedding section into a validated provider config.
func (c *Config) AIConfig() (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithBackend(c.Embedding.Backend),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithCacheDir(c.Embedding.CacheDir),
		ai.WithMaxLength(c.Embedding.MaxLength),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", core.ErrInvalidConfiguration, name)
}
