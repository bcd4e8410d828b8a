package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evalforge/evalforge/db"
	"github.com/evalforge/evalforge/internal/benchmark"
	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/embedding"
	"github.com/evalforge/evalforge/internal/llm"
	"github.com/evalforge/evalforge/internal/observability"
	"github.com/evalforge/evalforge/internal/vectorstore"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
// logger may be nil, in which case slog.Default() is used.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger, needs Needs) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideTracing(ctx, cfg, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	emb, err := embedding.New(embedder, cfg.EmbedderDimension, logger.With("component", "embedding"))
	if err != nil {
		return nil, fmt.Errorf("creating embedding service: %w", err)
	}
	a.Embedding = emb

	retry := llm.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	a.Client = llm.New(g, llm.Config{
		ModelName:         cfg.FullModelName(),
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		Retry:             retry,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, logger.With("component", "llm"))

	// The pool serves run persistence and the Postgres vector store; both
	// may share it, so it comes up once when either is requested.
	if needs.Runs || (needs.VectorStore && vectorBackend(cfg) == config.BackendPostgres) {
		pool, dbCleanup, err := OpenDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.DBPool = pool
		a.dbCleanup = dbCleanup
	}

	if needs.VectorStore {
		store, err := provideVectorStore(cfg, a.DBPool, logger)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	if needs.Runs {
		runs, err := benchmark.NewRunStore(a.DBPool, logger.With("component", "runs"))
		if err != nil {
			return nil, fmt.Errorf("creating run store: %w", err)
		}
		a.Runs = runs
	}

	return a, nil
}

// provideTracing sets up OTLP tracing before Genkit initialization so the
// TracerProvider is ready when the first span starts. The returned cleanup
// flushes pending spans with a bounded timeout.
func provideTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if !cfg.Trace.Enabled {
		return func() {}
	}

	shutdown, err := observability.SetupTracing(ctx, observability.Config{
		Endpoint:    cfg.Trace.Endpoint,
		Environment: cfg.Trace.Environment,
		ServiceName: cfg.Trace.ServiceName,
	})
	if err != nil {
		logger.Warn("setting up tracing, continuing untraced", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		// Register embedder for pipeline and retrieval use
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	switch provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// OpenDB creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
// Callers that need the database without the AI runtime (listing stored
// evaluation runs, for example) use this directly instead of Setup.
func OpenDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// provideVectorStore selects the retrieval backend. The Postgres store
// shares the application pool; Qdrant and Redis own their connections.
func provideVectorStore(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (vectorstore.Store, error) {
	vsLogger := logger.With("component", "vectorstore")

	switch vectorBackend(cfg) {
	case config.BackendPostgres:
		if pool == nil {
			return nil, errors.New("postgres vector store requires a database pool")
		}
		return vectorstore.NewPostgres(pool, vsLogger)
	case config.BackendQdrant:
		return vectorstore.NewQdrant(cfg.VectorStore.QdrantURL, cfg.VectorStore.QdrantAPIKey, vsLogger)
	case config.BackendRedis:
		return vectorstore.NewRedis(cfg.VectorStore.RedisAddr, vsLogger)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.VectorStore.Backend)
	}
}

// vectorBackend returns the configured backend, defaulting to postgres.
func vectorBackend(cfg *config.Config) string {
	if cfg.VectorStore.Backend == "" {
		return config.BackendPostgres
	}
	return cfg.VectorStore.Backend
}
