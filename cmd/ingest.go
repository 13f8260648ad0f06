package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aischolar/scholar/internal/ingest"
	"github.com/aischolar/scholar/internal/log"
)

// runIngest loads a document source into an instance. The source may be
// a file, a directory (walked recursively) or an http(s) URL.
func runIngest(logger log.Logger) error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: scholar ingest <instance> <path|url>")
	}
	instanceName := os.Args[2]
	source := os.Args[3]

	a, ctx, teardown, err := setupCLI(logger)
	if err != nil {
		return err
	}
	defer teardown()

	result, err := dispatchIngest(ctx, a.Ingest, instanceName, source)
	if err != nil {
		return fmt.Errorf("ingesting %q: %w", source, err)
	}

	fmt.Printf("Ingested %d document(s), %d chunk(s) into %s\n",
		result.DocumentsAdded, result.ChunksAdded, instanceName)
	if result.FilesSkipped > 0 || result.FilesFailed > 0 {
		fmt.Printf("Skipped %d, failed %d\n", result.FilesSkipped, result.FilesFailed)
	}
	return nil
}

func dispatchIngest(ctx context.Context, svc *ingest.Service, instanceName, source string) (ingest.Result, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return svc.IngestURL(ctx, instanceName, source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return ingest.Result{}, err
	}
	if info.IsDir() {
		return svc.IngestDirectory(ctx, instanceName, source)
	}
	return svc.IngestFile(ctx, instanceName, source)
}
