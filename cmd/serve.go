package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aischolar/scholar/internal/api"
	"github.com/aischolar/scholar/internal/app"
	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/config"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/monitor"
)

// monitorInterval is how often the background health check loop runs.
const monitorInterval = 5 * time.Minute

// runServe starts the HTTP API server with the background schedulers.
func runServe(logger log.Logger) error {
	addr, err := parseServeAddr()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing application", "error", err)
		}
	}()

	srv := api.NewServer(api.Deps{
		Pool:          a.DBPool,
		Store:         a.Store,
		Manager:       a.Manager,
		Ingest:        a.Ingest,
		Backup:        a.Backup,
		Monitor:       a.Monitor,
		Syncer:        a.Syncer,
		Analytics:     a.Analytics,
		Profiles:      a.Profiles,
		Graph:         a.Graph,
		Arxiv:         a.Arxiv,
		WebhookSecret: []byte(cfg.Zotero.WebhookSecret),
	}, api.Options{
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Backup.IntervalHours > 0 {
		interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
		scheduler := backup.NewScheduler(a.Backup, a.Manager, interval)
		g.Go(func() error {
			if err := scheduler.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		logger.Info("backup scheduler started", "interval", interval)
	}

	g.Go(func() error {
		if err := monitor.NewService(a.Monitor, monitorInterval).Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return srv.Run(gctx, addr)
	})

	logger.Info("server starting",
		"addr", addr,
		"version", AppVersion,
		"zotero_enabled", a.Syncer != nil)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
