package arxiv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// ChunkStore is the storage surface the importer needs. Satisfied by
// *vectorstore.Store.
type ChunkStore interface {
	Add(ctx context.Context, collection string, chunk vectorstore.Chunk) error
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Import searches arXiv and stores each paper's title plus abstract as
// one chunk in the named instance. The paper id keys the chunk, so
// re-importing the same query updates rather than duplicates.
func (c *Client) Import(ctx context.Context, store ChunkStore, instanceName string, req SearchRequest) (ImportResult, error) {
	start := time.Now()
	if err := instance.ValidateName(instanceName); err != nil {
		return ImportResult{}, err
	}
	if store == nil {
		return ImportResult{}, fmt.Errorf("store is required")
	}

	result, err := c.Search(ctx, req)
	if err != nil {
		return ImportResult{}, err
	}

	collection := instance.CollectionName(instanceName)
	imported := ImportResult{}
	for _, paper := range result.Papers {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		if paper.Abstract == "" {
			imported.Skipped++
			continue
		}

		metadata := map[string]string{
			"source_type": "arxiv",
			"arxiv_id":    paper.ID,
			"title":       paper.Title,
			"authors":     strings.Join(paper.Authors, ", "),
			"categories":  strings.Join(paper.Categories, ","),
			"published":   paper.Published.Format(time.RFC3339),
		}
		if paper.PDFURL != "" {
			metadata["pdf_url"] = paper.PDFURL
		}

		err := store.Add(ctx, collection, vectorstore.Chunk{
			ID:       "arxiv_" + paper.ID,
			Content:  paper.Title + "\n\n" + paper.Abstract,
			Metadata: metadata,
		})
		if err != nil {
			return imported, fmt.Errorf("importing paper %q: %w", paper.ID, err)
		}
		imported.Imported++
	}

	imported.Duration = time.Since(start)
	c.logger.Info("arxiv import completed",
		"instance", instanceName, "imported", imported.Imported, "skipped", imported.Skipped)
	return imported, nil
}
