// Package api provides the HTTP REST API for the scholar platform.
//
// Routing uses the standard library mux with method-qualified patterns.
// Middleware order (outermost first): recovery, request id, logging,
// security headers, CORS, rate limit.
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery, request id, logging, CORS, rate limiting
//   - response.go: JSON helpers and error-to-status mapping
//   - health.go: liveness and readiness probes
//   - one file per resource handler (instances.go, search.go, ...)
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aischolar/scholar/internal/analytics"
	"github.com/aischolar/scholar/internal/arxiv"
	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/graph"
	"github.com/aischolar/scholar/internal/ingest"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/monitor"
	"github.com/aischolar/scholar/internal/profile"
	"github.com/aischolar/scholar/internal/vectorstore"
	"github.com/aischolar/scholar/internal/zotero"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads (Slowloris).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Deps carries the services the API exposes. Nil entries disable the
// corresponding routes' functionality (handlers answer 503).
type Deps struct {
	Pool      *pgxpool.Pool
	Store     *vectorstore.Store
	Manager   *instance.Manager
	Ingest    *ingest.Service
	Backup    *backup.Service
	Monitor   *monitor.Monitor
	Syncer    *zotero.Syncer
	Analytics *analytics.Service
	Profiles  *profile.Store
	Graph     *graph.Store
	Arxiv     *arxiv.Client

	// WebhookSecret signs Zotero webhook deliveries.
	WebhookSecret []byte
}

// Options configures server behavior.
type Options struct {
	CORSOrigins []string
	TrustProxy  bool
	RateBurst   int
}

// Server is the HTTP server for the scholar REST API.
type Server struct {
	mux    *http.ServeMux
	opts   Options
	logger log.Logger

	health    *HealthHandler
	instances *InstanceHandler
	documents *DocumentHandler
	search    *SearchHandler
	backups   *BackupHandler
	monitors  *MonitorHandler
	zotero    *ZoteroHandler
	analytics *AnalyticsHandler
	profiles  *ProfileHandler
	graphs    *GraphHandler
	arxiv     *ArxivHandler
}

// NewServer creates a server with all routes registered.
func NewServer(deps Deps, opts Options, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		opts:      opts,
		logger:    logger.With("component", "api"),
		health:    &HealthHandler{pool: deps.Pool, logger: logger},
		instances: &InstanceHandler{manager: deps.Manager, logger: logger},
		documents: &DocumentHandler{ingest: deps.Ingest, store: deps.Store, logger: logger},
		search: &SearchHandler{
			store:     deps.Store,
			analytics: deps.Analytics,
			profiles:  deps.Profiles,
			monitor:   deps.Monitor,
			logger:    logger,
		},
		backups:  &BackupHandler{service: deps.Backup, logger: logger},
		monitors: &MonitorHandler{monitor: deps.Monitor, logger: logger},
		zotero: &ZoteroHandler{
			syncer:  deps.Syncer,
			secret:  deps.WebhookSecret,
			limiter: zotero.NewWebhookLimiter(),
			logger:  logger,
		},
		analytics: &AnalyticsHandler{service: deps.Analytics, logger: logger},
		profiles:  &ProfileHandler{store: deps.Profiles, logger: logger},
		graphs:    &GraphHandler{store: deps.Graph, logger: logger},
		arxiv:     &ArxivHandler{client: deps.Arxiv, store: deps.Store, logger: logger},
	}

	s.health.RegisterRoutes(mux)
	s.instances.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)
	s.search.RegisterRoutes(mux)
	s.backups.RegisterRoutes(mux)
	s.monitors.RegisterRoutes(mux)
	s.zotero.RegisterRoutes(mux)
	s.analytics.RegisterRoutes(mux)
	s.profiles.RegisterRoutes(mux)
	s.graphs.RegisterRoutes(mux)
	s.arxiv.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware(s.opts.TrustProxy),
		loggingMiddleware(s.logger),
		securityHeadersMiddleware(),
		corsMiddleware(s.opts.CORSOrigins),
		rateLimitMiddleware(newIPLimiters(s.opts.RateBurst), s.opts.TrustProxy),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
