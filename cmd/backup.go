package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aischolar/scholar/internal/app"
	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/config"
	"github.com/aischolar/scholar/internal/log"
)

// runBackup dispatches the backup subcommands: create, list, validate
// and prune.
func runBackup(logger log.Logger) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: scholar backup <create|list|validate|prune> [args]")
	}

	a, ctx, teardown, err := setupCLI(logger)
	if err != nil {
		return err
	}
	defer teardown()

	switch os.Args[2] {
	case "create":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: scholar backup create <instance> [full|metadata-only|embeddings-only|incremental]")
		}
		backupType := backup.TypeFull
		if len(os.Args) > 4 {
			backupType = backup.Type(os.Args[4])
		}
		meta, err := a.Backup.Create(ctx, os.Args[3], backupType)
		if err != nil {
			return fmt.Errorf("creating backup: %w", err)
		}
		if meta.Status == backup.StatusFailed {
			return fmt.Errorf("backup failed: %s", meta.Error)
		}
		fmt.Printf("Backup %s created (%d documents, %d bytes)\n",
			meta.ID, meta.DocumentCount, meta.SizeBytes)
		return nil

	case "list":
		instanceName := ""
		if len(os.Args) > 3 {
			instanceName = os.Args[3]
		}
		backups, err := a.Backup.List(instanceName)
		if err != nil {
			return fmt.Errorf("listing backups: %w", err)
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		for _, b := range backups {
			fmt.Printf("%s  %-20s  %-15s  %-10s  %s\n",
				b.ID, b.InstanceName, b.Type, b.Status, b.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil

	case "validate":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: scholar backup validate <id>")
		}
		if err := a.Backup.Validate(os.Args[3]); err != nil {
			return fmt.Errorf("validating backup: %w", err)
		}
		fmt.Println("Backup is valid.")
		return nil

	case "prune":
		result, err := a.Backup.ApplyRetention(ctx)
		if err != nil {
			return fmt.Errorf("applying retention: %w", err)
		}
		fmt.Printf("Examined %d backup(s), removed %d\n", result.Examined, len(result.Removed))
		return nil

	default:
		return fmt.Errorf("unknown backup subcommand: %s", os.Args[2])
	}
}

// runRestore replays a backup archive into an instance.
func runRestore(logger log.Logger) error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: scholar restore <id> <instance>")
	}
	id, instanceName := os.Args[2], os.Args[3]

	a, ctx, teardown, err := setupCLI(logger)
	if err != nil {
		return err
	}
	defer teardown()

	result, err := a.Backup.Restore(ctx, id, instanceName)
	if err != nil {
		return fmt.Errorf("restoring backup: %w", err)
	}
	fmt.Printf("Restored %d document(s) into %s (%d skipped)\n",
		result.DocumentsRestored, result.InstanceName, result.DocumentsSkipped)
	return nil
}

// setupCLI loads configuration and initializes the application for
// one-shot commands.
func setupCLI(logger log.Logger) (*app.App, context.Context, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	teardown := func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing application", "error", err)
		}
		stop()
	}
	return a, ctx, teardown, nil
}
