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


package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/cic"
	"github.com/poiesic/cic/config"
	"github.com/poiesic/cic/encoder"
	"github.com/poiesic/cic/ingestion"
	"github.com/poiesic/cic/reencode"
	"github.com/poiesic/cic/storage/wavefile"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "cic",
		Usage: "Deterministic resonance retrieval over text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"CIC_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the journal database directory",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Encoder construction (embed, char)",
			},
			&cli.IntFlag{
				Name:  "length",
				Usage: "Waveform length N",
			},
			&cli.IntFlag{
				Name:  "top-bins",
				Usage: "Frequency bins compared per query",
			},
			&cli.Float64Flag{
				Name:  "lambda",
				Usage: "Weight of the phase term",
			},
			&cli.StringFlag{
				Name:  "embedding-backend",
				Usage: "Embedding backend (openai, fastembed)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add each argument as a text",
				ArgsUsage: "TEXT...",
				Action:    addCommand,
			},
			{
				Name:   "ingest",
				Usage:  "Add every non-blank line of a file",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Input file, or - for stdin",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of texts encoded per task",
						Value: ingestion.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of concurrent encoding workers (0 = half the CPUs)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank stored texts against a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				},
			},
			{
				Name:   "export",
				Usage:  "Write all waveforms to an array file",
				Action: exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Output array file",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "compress",
						Usage: "Compress the body with zstd",
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Append the waveforms of an array file",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "in",
						Aliases:  []string{"i"},
						Usage:    "Input array file",
						Required: true,
					},
				},
			},
			{
				Name:   "reencode",
				Usage:  "Rebuild the journaled texts into another database with new settings",
				Action: reencodeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "Target database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "target-mode",
						Usage: "Encoder construction for the target (defaults to the source mode)",
					},
					&cli.IntFlag{
						Name:  "target-length",
						Usage: "Waveform length for the target (defaults to the source length)",
					},
					&cli.StringFlag{
						Name:  "target-model",
						Usage: "Embedding model for the target (defaults to the source model)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of texts to encode in each batch",
						Value: reencode.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N entries",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed batches",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

// setup loads configuration, applies global flag overrides and installs
// the logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("mode") {
		cfg.Index.Mode = c.String("mode")
	}
	if c.IsSet("length") {
		cfg.Index.Length = c.Int("length")
	}
	if c.IsSet("top-bins") {
		cfg.Index.TopBins = c.Int("top-bins")
	}
	if c.IsSet("lambda") {
		cfg.Index.Lambda = c.Float64("lambda")
	}
	if c.IsSet("embedding-backend") {
		cfg.Embedding.Backend = c.String("embedding-backend")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

// openEngine opens the database described by cfg.
func openEngine(cfg *config.Config, extra ...cic.Option) (*cic.Engine, error) {
	mode, err := encoder.ParseMode(cfg.Index.Mode)
	if err != nil {
		return nil, err
	}

	opts := []cic.Option{
		cic.WithMode(mode),
		cic.WithIndexOptions(cfg.IndexOptions()...),
	}
	if mode == encoder.ModeEmbed {
		aiConfig, err := cfg.AIConfig()
		if err != nil {
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		opts = append(opts, cic.WithAIConfig(aiConfig))
	}
	if cfg.Storage.InMemory {
		opts = append(opts, cic.WithInMemory())
	}
	opts = append(opts, extra...)

	engine, err := cic.Open(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

func addCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one text is required")
	}

	engine, err := openEngine(loadedConfig(c))
	if err != nil {
		return err
	}
	defer engine.Close()

	positions, err := engine.AddTexts(c.Context, c.Args().Slice())
	for i, pos := range positions {
		fmt.Fprintf(c.App.Writer, "%d\t%s\n", pos, c.Args().Get(i))
	}
	return err
}

func ingestCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	var in io.Reader = os.Stdin
	if name := c.String("file"); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	ingestOpts := []ingestion.Option{ingestion.WithBatchSize(c.Int("batch-size"))}
	if c.IsSet("pool-size") {
		ingestOpts = append(ingestOpts, ingestion.WithPoolSize(c.Int("pool-size")))
	}

	engine, err := openEngine(loadedConfig(c), cic.WithIngestionOptions(ingestOpts...))
	if err != nil {
		return err
	}
	defer engine.Close()

	positions, err := engine.IngestReader(c.Context, in)
	fmt.Fprintf(c.App.Writer, "Ingested %d texts (%d total)\n", len(positions), engine.Len())
	return err
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	engine, err := openEngine(loadedConfig(c))
	if err != nil {
		return err
	}
	defer engine.Close()

	hits, err := engine.Search(c.Context, query, c.Int("top-k"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPOSITION\tSCORE\tVERBATIM\tTEXT")
	for i, hit := range hits {
		text := ""
		if hit.Document != nil {
			text = hit.Document.Text
		}
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%t\t%s\n", i+1, hit.Position, hit.Score, hit.Verbatim, text)
	}
	return w.Flush()
}

func exportCommand(c *cli.Context) error {
	engine, err := openEngine(loadedConfig(c))
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []wavefile.Option
	if c.Bool("compress") {
		opts = append(opts, wavefile.WithCompression())
	}
	if err := engine.Save(c.String("out"), opts...); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Exported %d waveforms to %s\n", engine.Len(), c.String("out"))
	return nil
}

func importCommand(c *cli.Context) error {
	engine, err := openEngine(loadedConfig(c))
	if err != nil {
		return err
	}
	defer engine.Close()

	n, err := engine.Load(c.Context, c.String("in"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Imported %d waveforms (%d total)\n", n, engine.Len())
	return nil
}

func reencodeCommand(c *cli.Context) error {
	cfg := loadedConfig(c)

	reencodeConfig := &reencode.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reencodeConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reencodeConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reencodeConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	targetCfg := *cfg
	targetCfg.Storage = config.StorageConfig{Path: c.String("target")}
	if c.IsSet("target-mode") {
		targetCfg.Index.Mode = c.String("target-mode")
	}
	if c.IsSet("target-length") {
		targetCfg.Index.Length = c.Int("target-length")
	}
	if c.IsSet("target-model") {
		targetCfg.Embedding.Model = c.String("target-model")
	}
	if err := targetCfg.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}

	source, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := openEngine(&targetCfg)
	if err != nil {
		return err
	}
	defer target.Close()

	fmt.Fprintf(c.App.ErrWriter, "Source: %s (length %d, mode %s)\n",
		cfg.Storage.Path, source.Index().Length(), source.Index().Mode())
	fmt.Fprintf(c.App.ErrWriter, "Target: %s (length %d, mode %s)\n",
		targetCfg.Storage.Path, target.Index().Length(), target.Index().Mode())

	if _, err := source.Reencode(c.Context, target, reencodeConfig, c.App.ErrWriter); err != nil {
		return fmt.Errorf("re-encoding failed: %w", err)
	}
	return nil
}
