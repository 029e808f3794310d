package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/ai"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/localcache"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/sqlite"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/services"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/eval"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/runtime"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "hindsight-eval",
		Usage: "Measure how query expansion changes retrieval quality",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Index a dataset in memory and compare baseline and expanded search",
				Action: func(c *cli.Context) error {
					return runCommand(c, out)
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Aliases:  []string{"d"},
						Usage:    "Path to the JSON dataset",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, json)",
						Value:   eval.FormatText,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Search mode for cases that do not set one (fulltext, semantic, hybrid)",
						Value: string(domain.SearchModeFulltext),
					},
					&cli.StringFlag{
						Name:  "embedding-provider",
						Usage: "Embedding provider (disabled, mock, local, hosted)",
						Value: string(domain.ProviderMock),
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service base URL",
					},
					&cli.StringFlag{
						Name:    "embedding-api-key",
						Usage:   "API key for the hosted embedding provider",
						EnvVars: []string{"EMBEDDING_API_KEY"},
					},
					&cli.IntFlag{
						Name:  "max-expansions",
						Usage: "Maximum expanded queries per case",
						Value: domain.DefaultExpansionSettings().MaxExpansions,
					},
					&cli.StringFlag{
						Name:  "synonyms",
						Usage: "YAML synonym table replacing the built-in one",
					},
				},
			},
		},
	}
}

func runCommand(c *cli.Context, out io.Writer) error {
	ctx := context.Background()

	mode := domain.SearchMode(c.String("mode"))
	if !mode.IsValid() {
		return fmt.Errorf("invalid mode %q: must be one of fulltext, semantic, hybrid", mode)
	}
	format := c.String("format")
	if format != eval.FormatText && format != eval.FormatJSON {
		return fmt.Errorf("invalid format %q: must be text or json", format)
	}

	ds, err := eval.LoadDataset(c.String("dataset"))
	if err != nil {
		return err
	}

	// In-memory store seeded from the dataset
	db, err := sqlite.Open(ctx, sqlite.MemoryPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	store := sqlite.NewMemoryStore(db)

	embedding := domain.DefaultEmbeddingSettings()
	embedding.Provider = domain.ProviderKind(c.String("embedding-provider"))
	if v := c.String("embedding-model"); v != "" {
		embedding.Model = v
	}
	if v := c.String("embedding-host"); v != "" {
		embedding.BaseURL = v
	}
	embedding.APIKey = c.String("embedding-api-key")

	rt, err := runtime.NewServices(
		domain.NewRuntimeConfig(store.Dialect()),
		ai.NewFactory(),
		domain.AISettings{Embedding: embedding, LLM: domain.DefaultLLMSettings()},
	)
	if err != nil {
		return fmt.Errorf("failed to create AI providers: %w", err)
	}
	defer rt.Close()

	logger := slog.Default()
	embeddings := services.NewEmbeddingService(rt, store, services.EmbeddingConfig{
		Dimensions: embedding.Dimensions,
		Logger:     logger,
	})

	if err := eval.Seed(ctx, store, embeddings, ds.Memories); err != nil {
		return err
	}

	settings := domain.DefaultExpansionSettings()
	settings.MaxExpansions = c.Int("max-expansions")

	var synonyms map[string][]string
	if path := c.String("synonyms"); path != "" {
		if synonyms, err = services.LoadSynonyms(path); err != nil {
			return err
		}
	}

	cache, err := localcache.NewExpansionCache(localcache.DefaultSize)
	if err != nil {
		return err
	}
	expander := services.NewQueryExpansionEngine(services.QueryExpansionConfig{
		Settings: settings,
		Synonyms: synonyms,
		Cache:    cache,
		Logger:   logger,
	}, rt)

	searchCfg := services.SearchConfig{Fusion: domain.DefaultFusionConfig(), Logger: logger}
	baseline := services.NewSearchService(store, embeddings, nil, searchCfg)
	expanded := services.NewSearchService(store, embeddings, expander, searchCfg)

	report, err := eval.NewRunner(baseline, expanded, mode, logger).Run(ctx, ds.Cases)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	report.Dataset = ds.Name

	return report.Write(out, format)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
