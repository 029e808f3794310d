package main

// @title           Hindsight Memory API
// @version         1.0
// @description     Retrieval core for agent memories. Hindsight ranks memories with full-text, semantic, and hybrid search with query expansion.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/ai"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/auth"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/localcache"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/postgres"
	redisadapter "github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/redis"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driven/sqlite"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driving/http"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/adapters/driving/mcp"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/config"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/services"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/metrics"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/runtime"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/worker"
)

var version = "dev"

// Run modes
const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeMCP    = "mcp"
	modeAll    = "all"
)

// app holds everything the run modes share
type app struct {
	cfg    config.Config
	logger *slog.Logger

	store       driven.MemoryStore
	storeHealth http.Pinger
	redisHealth http.Pinger
	lock        driven.DistributedLock

	runtime    *runtime.Services
	embeddings driving.EmbeddingService
	expander   driving.QueryExpander
	search     driving.SearchService
	memories   driving.MemoryService
	tokens     driven.TokenParser

	closers []func() error
}

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := os.Getenv("RUN_MODE")
	if mode == "" {
		mode = modeAll
	}
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hindsight: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	logger.Info("hindsight starting", "version", version, "mode", mode)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	switch mode {
	case modeAPI:
		err = a.runAPI(ctx)
	case modeWorker:
		err = a.runWorker(ctx)
	case modeMCP:
		err = a.runMCP(ctx)
	case modeAll:
		// API in the foreground, worker in the background
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.runWorker(gctx) })
		g.Go(func() error { return a.runAPI(gctx) })
		err = g.Wait()
	default:
		err = fmt.Errorf("unknown mode: %s (use: api, worker, mcp, or all)", mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("hindsight exited with error", "error", err)
		a.close()
		os.Exit(1)
	}
	logger.Info("hindsight stopped")
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	metrics.Register()

	if cfg.UsesDevSecret() {
		logger.Warn("using the development JWT secret; set JWT_SECRET in production")
	}

	// ===== Memory store =====
	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	// ===== Redis (optional) =====
	var expansionCache driven.ExpansionCache
	if cfg.Redis.URL != "" {
		logger.Info("connecting to Redis")
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		redisLock := redisadapter.NewLock(client)
		a.lock = redisLock
		a.redisHealth = redisLock
		expansionCache = redisadapter.NewExpansionCache(client)
		logger.Info("using Redis for backfill lock and expansion cache")
	} else {
		cache, err := localcache.NewExpansionCache(localcache.DefaultSize)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create expansion cache: %w", err)
		}
		expansionCache = cache
		if pgDB, ok := a.storeHealth.(*postgres.DB); ok {
			a.lock = postgres.NewAdvisoryLock(pgDB)
			logger.Info("using PostgreSQL advisory lock")
		}
	}

	// ===== AI providers =====
	runtimeConfig := domain.NewRuntimeConfig(a.store.Dialect())
	rt, err := runtime.NewServices(runtimeConfig, ai.NewFactory(), cfg.AISettings())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to resolve AI providers: %w", err)
	}
	a.runtime = rt
	a.closers = append(a.closers, rt.Close)

	if runtimeConfig.EmbeddingAvailable() {
		if err := rt.ValidateEmbedding(ctx); err != nil {
			logger.Warn("embedding provider health check failed; semantic search will degrade", "error", err)
		}
	}

	// ===== Core services =====
	a.embeddings = services.NewEmbeddingService(rt, a.store, services.EmbeddingConfig{
		Dimensions:          cfg.Embedding.Dimensions,
		Timeout:             cfg.Embedding.Timeout,
		BackfillConcurrency: cfg.Backfill.Concurrency,
		Logger:              logger,
	})

	var synonyms map[string][]string
	if cfg.Expansion.SynonymsFile != "" {
		synonyms, err = services.LoadSynonyms(cfg.Expansion.SynonymsFile)
		if err != nil {
			a.close()
			return nil, err
		}
	}
	a.expander = services.NewQueryExpansionEngine(services.QueryExpansionConfig{
		Settings:   cfg.Expansion,
		Synonyms:   synonyms,
		Cache:      expansionCache,
		LLMTimeout: cfg.LLM.Timeout,
		Logger:     logger,
	}, rt)

	a.search = services.NewSearchService(a.store, a.embeddings, a.expander, services.SearchConfig{
		DefaultLimit:         cfg.Search.DefaultLimit,
		MaxLimit:             cfg.Search.MaxLimit,
		Timeout:              cfg.Search.Timeout,
		Fusion:               cfg.Fusion,
		ExpansionParallelism: cfg.Expansion.Parallelism,
		Logger:               logger,
	})
	a.memories = services.NewMemoryService(a.store, a.embeddings, logger)
	a.tokens = auth.NewAdapterWithTTL(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	logger.Info("runtime config",
		"store", runtimeConfig.StoreDialect,
		"vector_search", a.store.SupportsVectorSearch(ctx),
		"embedding", runtimeConfig.EmbeddingAvailable(),
		"llm", runtimeConfig.LLMAvailable(),
		"search_mode", runtimeConfig.EffectiveSearchMode(),
		"expansion", a.expander.Enabled(),
	)
	return a, nil
}

// openStore connects the configured memory store and initializes its schema
func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case config.DriverSQLite:
		a.logger.Info("opening SQLite", "path", a.cfg.Database.Path)
		db, err := sqlite.Open(ctx, a.cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.store = sqlite.NewMemoryStore(db)
		a.storeHealth = db
	default:
		a.logger.Info("connecting to PostgreSQL")
		dbConfig := postgres.DefaultConfig(a.cfg.Database.URL)
		if a.cfg.Database.MaxOpenConns > 0 {
			dbConfig.MaxOpenConns = a.cfg.Database.MaxOpenConns
		}
		if a.cfg.Database.MaxIdleConns > 0 {
			dbConfig.MaxIdleConns = a.cfg.Database.MaxIdleConns
		}
		if a.cfg.Database.ConnMaxLifetime > 0 {
			dbConfig.ConnMaxLifetime = a.cfg.Database.ConnMaxLifetime
		}
		if a.cfg.Database.ConnMaxIdleTime > 0 {
			dbConfig.ConnMaxIdleTime = a.cfg.Database.ConnMaxIdleTime
		}
		db, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.store = postgres.NewMemoryStore(db)
		a.storeHealth = db
	}
	return nil
}

func (a *app) runAPI(ctx context.Context) error {
	server := http.NewServer(
		http.Config{
			Host:              a.cfg.Server.Host,
			Port:              a.cfg.Server.Port,
			Version:           version,
			AllowAnonymous:    a.cfg.Server.AllowAnonymous,
			BackfillBatchSize: a.cfg.Backfill.BatchSize,
			CORSOrigins:       a.cfg.Server.CORSOrigins,
			Logger:            a.logger,
		},
		a.search,
		a.memories,
		a.embeddings,
		a.expander,
		a.tokens,
		a.storeHealth,
		a.redisHealth,
	)

	a.logger.Info("API server starting", "port", a.cfg.Server.Port)
	return server.Run(ctx)
}

// runWorker runs the embedding backfill worker until ctx is cancelled
func (a *app) runWorker(ctx context.Context) error {
	w := worker.NewWorker(worker.WorkerConfig{
		Embeddings: a.embeddings,
		Lock:       a.lock,
		Logger:     a.logger,
		BatchSize:  a.cfg.Backfill.BatchSize,
		Interval:   a.cfg.Backfill.Interval,
		LockTTL:    a.cfg.Backfill.LockTTL,
	})

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	a.logger.Info("stopping worker")
	w.Stop()
	return nil
}

func (a *app) runMCP(ctx context.Context) error {
	server := mcp.NewServer(mcp.Config{
		Version:      version,
		Caller:       a.cfg.MCPCaller(),
		DefaultLimit: a.cfg.Search.DefaultLimit,
		Logger:       a.logger,
	}, a.search, a.expander)
	return server.Serve(ctx)
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
