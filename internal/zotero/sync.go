package zotero

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// ChunkStore is the storage surface the syncer needs. Satisfied by
// *vectorstore.Store.
type ChunkStore interface {
	Add(ctx context.Context, collection string, chunk vectorstore.Chunk) error
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	ItemsSynced    int           `json:"items_synced"`
	ItemsSkipped   int           `json:"items_skipped"`
	ItemsFailed    int           `json:"items_failed"`
	LibraryVersion int           `json:"library_version"`
	Duration       time.Duration `json:"duration"`
}

// Syncer synchronizes Zotero items into an instance's collection.
// It tracks the last synced library version per instance so webhook
// deliveries trigger cheap incremental syncs.
type Syncer struct {
	client *Client
	store  ChunkStore

	mu       sync.Mutex
	versions map[string]int // instance name -> last synced library version
}

// NewSyncer creates a syncer.
func NewSyncer(client *Client, store ChunkStore) (*Syncer, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Syncer{
		client:   client,
		store:    store,
		versions: make(map[string]int),
	}, nil
}

// Sync pulls items changed since the last sync into the named instance.
// full forces a complete resync regardless of tracked version.
func (s *Syncer) Sync(ctx context.Context, instanceName string, full bool) (SyncResult, error) {
	start := time.Now()
	if err := instance.ValidateName(instanceName); err != nil {
		return SyncResult{}, err
	}

	since := 0
	if !full {
		s.mu.Lock()
		since = s.versions[instanceName]
		s.mu.Unlock()
	}

	page, err := s.client.Items(ctx, since)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetching zotero items: %w", err)
	}

	collection := instance.CollectionName(instanceName)
	result := SyncResult{LibraryVersion: page.LibraryVersion}
	for _, item := range page.Items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !item.Syncable() {
			result.ItemsSkipped++
			continue
		}

		if err := s.store.Add(ctx, collection, itemChunk(item)); err != nil {
			s.client.logger.Warn("failed to sync zotero item",
				"key", item.Key, "error", err)
			result.ItemsFailed++
			continue
		}
		result.ItemsSynced++
	}

	if result.ItemsFailed == 0 && page.LibraryVersion > 0 {
		s.mu.Lock()
		s.versions[instanceName] = page.LibraryVersion
		s.mu.Unlock()
	}

	result.Duration = time.Since(start)
	s.client.logger.Info("zotero sync completed",
		"instance", instanceName,
		"synced", result.ItemsSynced, "skipped", result.ItemsSkipped,
		"failed", result.ItemsFailed, "library_version", result.LibraryVersion,
		"incremental", since > 0)
	return result, nil
}

// LastVersion returns the last successfully synced library version for
// an instance (0 if never synced).
func (s *Syncer) LastVersion(instanceName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[instanceName]
}

// itemChunk converts a Zotero item into a stored chunk. The item key
// keys the chunk so re-syncs upsert.
func itemChunk(item Item) vectorstore.Chunk {
	var content strings.Builder
	content.WriteString(item.Data.Title)
	if item.Data.AbstractNote != "" {
		content.WriteString("\n\n")
		content.WriteString(item.Data.AbstractNote)
	}

	metadata := map[string]string{
		"source_type":    "zotero",
		"zotero_key":     item.Key,
		"zotero_version": strconv.Itoa(item.Version),
		"item_type":      item.Data.ItemType,
		"title":          item.Data.Title,
		"last_sync":      time.Now().UTC().Format(time.RFC3339),
	}
	if authors := item.Data.AuthorList(); authors != "" {
		metadata["authors"] = authors
	}
	if tags := item.Data.TagList(); tags != "" {
		metadata["tags"] = tags
	}
	if item.Data.DOI != "" {
		metadata["doi"] = item.Data.DOI
	}
	if item.Data.URL != "" {
		metadata["url"] = item.Data.URL
	}
	if item.Data.Date != "" {
		metadata["date"] = item.Data.Date
	}

	return vectorstore.Chunk{
		ID:       "zotero_" + item.Key,
		Content:  content.String(),
		Metadata: metadata,
	}
}
