// Package app wires configuration, storage, AI backends and services into
// a running policy-rag instance shared by the CLI, HTTP, MCP and TUI
// entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/policy-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/policy-rag/internal/adapters/driven/postgres"
	redisqueue "github.com/custodia-labs/policy-rag/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/policy-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/policy-rag/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/policy-rag/internal/config"
	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driving"
	"github.com/custodia-labs/policy-rag/internal/core/services"
	"github.com/custodia-labs/policy-rag/internal/normalisers"
	"github.com/custodia-labs/policy-rag/internal/postprocessors"
	"github.com/custodia-labs/policy-rag/internal/runtime"
	"github.com/custodia-labs/policy-rag/internal/worker"
)

// Check is a named readiness probe
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// App holds the wired services and the resources they depend on.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Runtime   *runtime.Services
	RAG       driving.RAGService
	Ingestion driving.IngestionService
	Queue     driven.TaskQueue // nil without Redis

	checks  []Check
	closers []func() error
}

// New connects the configured backends and builds the services. Optional
// backends degrade instead of failing: an unreachable encoder falls back
// to the hash encoder and an unreachable generator leaves template answers.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	documents, vectors, lock, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var cache driven.ResponseCache
	if cfg.Redis.URL != "" {
		client, err := redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, Check{Name: "redis", Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})

		cache = redisadapter.NewResponseCache(client)
		lock = redisadapter.NewLock(client)
		if a.Queue, err = a.openQueue(ctx, client); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("redis enabled", "cache", true, "queue", true, "lock", "redis")
	}

	runtimeConfig := domain.NewRuntimeConfig(cfg.Storage.Backend, cache != nil)
	a.Runtime = runtime.NewServices(runtimeConfig)
	a.closers = append(a.closers, a.Runtime.Close)
	if err := a.configureAI(ctx); err != nil {
		a.Close()
		return nil, err
	}

	r := cfg.Retrieval
	a.RAG = services.NewRAGService(documents, vectors, a.Runtime, cache, services.RAGConfig{
		MaxQueryLength:      r.MaxQueryLength,
		MaxTopK:             r.MaxTopK,
		DefaultTopK:         r.DefaultTopK,
		Chunk:               postprocessors.ChunkConfig{Size: r.ChunkSize, Overlap: r.ChunkOverlap},
		SimilarityThreshold: r.SimilarityThreshold,
		CacheTTL:            r.CacheTTL(),
		GeneratorTimeout:    cfg.Generator.Timeout(),
		Logger:              logger.With("component", "rag"),
	})

	ingestionCfg := services.DefaultIngestionConfig()
	ingestionCfg.Logger = logger.With("component", "ingestion")
	a.Ingestion = services.NewIngestionService(a.RAG, a.Queue, lock, normalisers.DefaultRegistry(), ingestionCfg)

	logger.Info("runtime config",
		"storage", runtimeConfig.StorageBackend,
		"cache", runtimeConfig.CacheEnabled,
		"encoder_fallback", runtimeConfig.EncoderFallback(),
		"generator", runtimeConfig.GeneratorAvailable(),
	)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (driven.DocumentStore, driven.VectorStore, driven.DistributedLock, error) {
	switch a.Config.Storage.Backend {
	case "postgres":
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(a.Config.Storage.PostgresURL))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.checks = append(a.checks, Check{Name: "postgres", Ping: db.Ping})
		a.Logger.Info("storage ready", "backend", "postgres")
		return postgres.NewDocumentStore(db), postgres.NewVectorStore(db), postgres.NewAdvisoryLock(db), nil

	case "sqlite":
		store, err := sqlite.NewStore(a.Config.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.checks = append(a.checks, Check{Name: "sqlite", Ping: store.Ping})
		a.Logger.Info("storage ready", "backend", "sqlite", "path", store.Path())
		return store.DocumentStore(), store.VectorStore(), nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", a.Config.Storage.Backend)
	}
}

func (a *App) openQueue(ctx context.Context, client *goredis.Client) (driven.TaskQueue, error) {
	host, _ := os.Hostname()
	consumer := fmt.Sprintf("%s-%d", host, os.Getpid())
	q, err := redisqueue.NewQueue(ctx, client, consumer)
	if err != nil {
		return nil, fmt.Errorf("failed to create task queue: %w", err)
	}
	a.closers = append(a.closers, q.Close)
	return q, nil
}

// configureAI installs the encoder and the optional generator.
func (a *App) configureAI(ctx context.Context) error {
	factory := ai.NewFactory()
	e := a.Config.Embedding
	g := a.Config.Generator
	hash := ai.NewHashEmbedding()

	encoder, err := factory.CreateEmbeddingService(ctx, ai.EmbeddingSettings{
		Provider:   e.Provider,
		Model:      e.Model,
		BaseURL:    e.BaseURL,
		APIKey:     e.APIKey,
		Dimensions: e.Dimensions,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidProvider):
		return err
	case err != nil:
		a.Logger.Warn("encoder not configured, using hash fallback", "provider", e.Provider, "error", err)
		a.Runtime.SetEmbeddingService(hash, true)
	case e.Provider == ai.ProviderHash || e.Provider == "":
		a.Runtime.SetEmbeddingService(hash, true)
	default:
		// A failed health check leaves the hash fallback installed
		_ = a.Runtime.ValidateAndSetEmbedding(ctx, encoder, hash)
	}

	generator, err := factory.CreateLLMService(ctx, ai.LLMSettings{
		Provider:          g.Provider,
		Model:             g.Model,
		BaseURL:           g.BaseURL,
		APIKey:            g.APIKey,
		Temperature:       g.Temperature,
		MaxTokens:         g.MaxTokens,
		Timeout:           g.Timeout(),
		RequestsPerSecond: g.RequestsPerSecond,
		Burst:             g.Burst,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidProvider):
		return err
	case err != nil:
		a.Logger.Warn("generator not configured, using template answers", "provider", g.Provider, "error", err)
	case generator != nil:
		if err := a.Runtime.ValidateAndSetLLM(ctx, generator); err != nil {
			a.Logger.Warn("generator unavailable, using template answers", "model", generator.Model(), "error", err)
		}
	}
	return nil
}

// Seed loads the predefined policies when configured to and the store is
// empty. Failures are logged; the service still starts.
func (a *App) Seed(ctx context.Context) {
	if !a.Config.Ingestion.SeedOnStart {
		return
	}
	n, err := a.Ingestion.SeedPolicies(ctx)
	if err != nil {
		a.Logger.Error("failed to seed policies", "error", err)
		return
	}
	if n > 0 {
		a.Logger.Info("seeded predefined policies", "documents", n)
	}
}

// NewWorker builds a queue worker, or returns ErrServiceUnavailable when
// no queue is configured.
func (a *App) NewWorker() (*worker.Worker, error) {
	if a.Queue == nil {
		return nil, fmt.Errorf("%w: background ingestion requires redis", domain.ErrServiceUnavailable)
	}
	return worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.Queue,
		Processor:      a.Ingestion,
		Logger:         a.Logger.With("component", "worker"),
		Concurrency:    a.Config.Worker.Concurrency,
		DequeueTimeout: a.Config.Worker.DequeueTimeoutSeconds,
	}), nil
}

// Checks returns the readiness probes of the connected backends
func (a *App) Checks() []Check {
	return a.checks
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
