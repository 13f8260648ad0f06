package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aischolar/scholar/db"
	"github.com/aischolar/scholar/internal/analytics"
	"github.com/aischolar/scholar/internal/arxiv"
	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/config"
	"github.com/aischolar/scholar/internal/graph"
	"github.com/aischolar/scholar/internal/ingest"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/monitor"
	"github.com/aischolar/scholar/internal/observability"
	"github.com/aischolar/scholar/internal/profile"
	"github.com/aischolar/scholar/internal/vectorstore"
	"github.com/aischolar/scholar/internal/zotero"
)

// Setup creates and initializes the application. Returns an App with
// embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initialization so the
	// TracerProvider is ready when flows start.
	if cfg.Tracing.Enabled {
		a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)
	}

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, embedder, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	if err := provideServices(a, pool, embedder); err != nil {
		return nil, err
	}
	return a, nil
}

// provideOtelShutdown wires the OTLP trace exporter and returns a
// teardown that flushes pending spans.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	}, logger)
	if err != nil {
		logger.Warn("tracing setup failed, continuing without", "error", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
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

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the Gemini plugin and resolves
// the configured embedder.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, nil, errors.New("initializing genkit")
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	return g, embedder, nil
}

// provideServices constructs the domain services over the shared pool
// and embedder.
func provideServices(a *App, pool *pgxpool.Pool, embedder ai.Embedder) error {
	logger := a.Logger
	cfg := a.Config

	store, err := vectorstore.New(pool, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	a.Store = store

	manager, err := instance.NewManager(store, logger)
	if err != nil {
		return fmt.Errorf("creating instance manager: %w", err)
	}
	a.Manager = manager

	ingestSvc, err := ingest.NewService(store, logger)
	if err != nil {
		return fmt.Errorf("creating ingest service: %w", err)
	}
	a.Ingest = ingestSvc

	backupSvc, err := backup.NewService(store, cfg.Backup, logger)
	if err != nil {
		return fmt.Errorf("creating backup service: %w", err)
	}
	a.Backup = backupSvc

	mon, err := monitor.New(store, manager, logger)
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}
	a.Monitor = mon

	analyticsSvc, err := analytics.New(pool, logger)
	if err != nil {
		return fmt.Errorf("creating analytics service: %w", err)
	}
	a.Analytics = analyticsSvc

	profiles, err := profile.NewStore(pool, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating profile store: %w", err)
	}
	a.Profiles = profiles

	graphStore, err := graph.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating graph store: %w", err)
	}
	a.Graph = graphStore

	a.Arxiv = arxiv.NewClient("", logger)

	// Zotero is optional; without credentials the sync endpoints stay
	// disabled.
	if cfg.Zotero.APIKey != "" && cfg.Zotero.UserID != "" {
		client, err := zotero.NewClient(cfg.Zotero, logger)
		if err != nil {
			return fmt.Errorf("creating zotero client: %w", err)
		}
		syncer, err := zotero.NewSyncer(client, store)
		if err != nil {
			return fmt.Errorf("creating zotero syncer: %w", err)
		}
		a.Zotero = client
		a.Syncer = syncer
	}

	return nil
}
