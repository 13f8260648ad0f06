// Package cmd provides the scholar CLI commands.
//
// Commands:
//   - serve: HTTP API server with background schedulers
//   - ingest: load documents from a file, directory or URL
//   - backup: create, list, validate and prune backups
//   - restore: replay a backup into an instance
//
// All long-running commands handle SIGINT/SIGTERM via context
// cancellation and shut down gracefully.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aischolar/scholar/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the scholar CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ingest":
		return runIngest(logger)
	case "backup":
		return runBackup(logger)
	case "restore":
		return runRestore(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("scholar - multi-tenant research knowledge base")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  scholar serve [addr]                    Start the HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  scholar ingest <instance> <path|url>    Ingest a file, directory or URL")
	fmt.Println("  scholar backup create <instance>        Create a backup")
	fmt.Println("  scholar backup list [instance]          List backups")
	fmt.Println("  scholar backup validate <id>            Verify a backup archive")
	fmt.Println("  scholar backup prune                    Apply the retention policy")
	fmt.Println("  scholar restore <id> <instance>         Restore a backup into an instance")
	fmt.Println("  scholar --version                       Show version information")
	fmt.Println("  scholar --help                          Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY          Required: Gemini API key for embeddings")
	fmt.Println("  DATABASE_URL            Optional: PostgreSQL connection URL")
	fmt.Println("  ZOTERO_API_KEY          Optional: enables Zotero sync")
	fmt.Println("  ZOTERO_USER_ID          Optional: Zotero library id")
	fmt.Println("  ZOTERO_WEBHOOK_SECRET   Optional: webhook HMAC secret")
	fmt.Println("  DEBUG                   Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.scholar/config.yaml")
}
