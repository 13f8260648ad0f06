// Package app wires the application together: configuration, database,
// embedder and every service, with ordered teardown.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aischolar/scholar/internal/analytics"
	"github.com/aischolar/scholar/internal/arxiv"
	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/config"
	"github.com/aischolar/scholar/internal/graph"
	"github.com/aischolar/scholar/internal/ingest"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/monitor"
	"github.com/aischolar/scholar/internal/profile"
	"github.com/aischolar/scholar/internal/vectorstore"
	"github.com/aischolar/scholar/internal/zotero"
)

// App holds the initialized application components.
type App struct {
	Config *config.Config
	Logger log.Logger

	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Store     *vectorstore.Store
	Manager   *instance.Manager
	Ingest    *ingest.Service
	Backup    *backup.Service
	Monitor   *monitor.Monitor
	Analytics *analytics.Service
	Profiles  *profile.Store
	Graph     *graph.Store
	Arxiv     *arxiv.Client

	// Zotero components are nil when no API credentials are configured.
	Zotero *zotero.Client
	Syncer *zotero.Syncer

	otelCleanup func()
	dbCleanup   func()
}

// Close releases application resources in reverse initialization order.
// Safe to call more than once.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
