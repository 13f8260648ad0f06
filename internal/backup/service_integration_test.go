//go:build integration

package backup_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/config"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/testutil"
	"github.com/aischolar/scholar/internal/vectorstore"
)

func setupBackup(t *testing.T, compress bool) (*backup.Service, *instance.Manager, *vectorstore.Store, func()) {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)

	g := genkit.Init(context.Background())
	mock := testutil.NewMockEmbedder(int(vectorstore.VectorDimension))
	store, err := vectorstore.New(db.Pool, mock.RegisterEmbedder(g), testutil.DiscardLogger())
	if err != nil {
		cleanup()
		t.Fatalf("vectorstore.New() error: %v", err)
	}
	mgr, err := instance.NewManager(store, testutil.DiscardLogger())
	if err != nil {
		cleanup()
		t.Fatalf("NewManager() error: %v", err)
	}
	svc, err := backup.NewService(store, config.BackupConfig{
		Dir:      t.TempDir(),
		Compress: compress,
	}, testutil.DiscardLogger())
	if err != nil {
		cleanup()
		t.Fatalf("NewService() error: %v", err)
	}
	return svc, mgr, store, cleanup
}

func TestService_CreateValidateRestore(t *testing.T) {
	svc, mgr, store, cleanup := setupBackup(t, true)
	defer cleanup()
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "ml_research", "source instance"); err != nil {
		t.Fatalf("instance Create() error: %v", err)
	}
	collection := instance.CollectionName("ml_research")
	for _, c := range []vectorstore.Chunk{
		{ID: "p1-c0", Content: "attention mechanisms", Metadata: map[string]string{"source_type": "paper"}},
		{ID: "p2-c0", Content: "residual networks"},
	} {
		if err := store.Add(ctx, collection, c); err != nil {
			t.Fatalf("Add(%s) error: %v", c.ID, err)
		}
	}

	meta, err := svc.Create(ctx, "ml_research", backup.TypeFull)
	if err != nil {
		t.Fatalf("backup Create() error: %v", err)
	}
	if meta.Status != backup.StatusCompleted {
		t.Errorf("status = %s, want completed", meta.Status)
	}
	if meta.DocumentCount != 2 {
		t.Errorf("DocumentCount = %d, want 2", meta.DocumentCount)
	}
	if meta.Checksum == "" || meta.SizeBytes == 0 {
		t.Errorf("incomplete metadata: %+v", meta)
	}

	if err := svc.Validate(meta.ID); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	// Restore into a fresh instance; the target is created on demand.
	result, err := svc.Restore(ctx, meta.ID, "ml_restored")
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if result.DocumentsRestored != 2 || result.DocumentsSkipped != 0 {
		t.Errorf("restore result = %+v, want 2 restored", result)
	}

	restored, err := mgr.Get(ctx, "ml_restored")
	if err != nil {
		t.Fatalf("Get(ml_restored) error: %v", err)
	}
	if restored.DocumentCount != 2 {
		t.Errorf("restored DocumentCount = %d, want 2", restored.DocumentCount)
	}

	// Restored chunks carry the target instance's stamp, not the source's.
	chunks, err := store.Sample(ctx, instance.CollectionName("ml_restored"), 10)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	for _, c := range chunks {
		if got := c.Metadata[vectorstore.MetadataInstanceKey]; got != "ml_restored" {
			t.Errorf("chunk %s stamp = %q, want ml_restored", c.ID, got)
		}
	}
}

func TestService_IncrementalChain(t *testing.T) {
	svc, mgr, store, cleanup := setupBackup(t, false)
	defer cleanup()
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "inc_src", ""); err != nil {
		t.Fatalf("instance Create() error: %v", err)
	}
	collection := instance.CollectionName("inc_src")
	for _, c := range []vectorstore.Chunk{
		{ID: "p1-c0", Content: "attention mechanisms"},
		{ID: "p2-c0", Content: "residual networks"},
	} {
		if err := store.Add(ctx, collection, c); err != nil {
			t.Fatalf("Add(%s) error: %v", c.ID, err)
		}
	}

	full, err := svc.Create(ctx, "inc_src", backup.TypeFull)
	if err != nil {
		t.Fatalf("full Create() error: %v", err)
	}
	if full.DocumentCount != 2 {
		t.Fatalf("full DocumentCount = %d, want 2", full.DocumentCount)
	}

	if err := store.Add(ctx, collection, vectorstore.Chunk{ID: "p3-c0", Content: "graph networks"}); err != nil {
		t.Fatalf("Add(p3-c0) error: %v", err)
	}

	// Backup ids have second resolution.
	time.Sleep(1100 * time.Millisecond)

	inc, err := svc.Create(ctx, "inc_src", backup.TypeIncremental)
	if err != nil {
		t.Fatalf("incremental Create() error: %v", err)
	}
	if inc.BaseID != full.ID {
		t.Errorf("BaseID = %q, want %q", inc.BaseID, full.ID)
	}
	if inc.DocumentCount != 1 {
		t.Errorf("incremental DocumentCount = %d, want only the delta", inc.DocumentCount)
	}

	// Restoring the incremental replays the whole chain.
	result, err := svc.Restore(ctx, inc.ID, "inc_restored")
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if result.DocumentsRestored != 3 {
		t.Errorf("restored = %d, want 3 across the chain", result.DocumentsRestored)
	}

	restored, err := mgr.Get(ctx, "inc_restored")
	if err != nil {
		t.Fatalf("Get(inc_restored) error: %v", err)
	}
	if restored.DocumentCount != 3 {
		t.Errorf("restored DocumentCount = %d, want 3", restored.DocumentCount)
	}

	// A pruned base breaks the chain.
	if err := svc.Delete(full.ID); err != nil {
		t.Fatalf("Delete(base) error: %v", err)
	}
	if _, err := svc.Restore(ctx, inc.ID, "inc_broken"); !errors.Is(err, backup.ErrBackupNotFound) {
		t.Errorf("Restore() error = %v, want ErrBackupNotFound", err)
	}
}

func TestService_IncrementalWithoutBaseIsFull(t *testing.T) {
	svc, mgr, store, cleanup := setupBackup(t, false)
	defer cleanup()
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "inc_first", ""); err != nil {
		t.Fatalf("instance Create() error: %v", err)
	}
	collection := instance.CollectionName("inc_first")
	if err := store.Add(ctx, collection, vectorstore.Chunk{ID: "c0", Content: "hello"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	meta, err := svc.Create(ctx, "inc_first", backup.TypeIncremental)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if meta.BaseID != "" {
		t.Errorf("BaseID = %q, want empty for first backup", meta.BaseID)
	}
	if meta.DocumentCount != 1 {
		t.Errorf("DocumentCount = %d, want the full collection", meta.DocumentCount)
	}
}

func TestService_CreateMissingInstanceFails(t *testing.T) {
	svc, _, _, cleanup := setupBackup(t, false)
	defer cleanup()

	meta, err := svc.Create(context.Background(), "nonexistent", backup.TypeFull)
	if !errors.Is(err, instance.ErrInstanceNotFound) {
		t.Fatalf("error = %v, want ErrInstanceNotFound", err)
	}
	if meta.Status != backup.StatusFailed {
		t.Errorf("status = %s, want failed", meta.Status)
	}
	if meta.Error == "" {
		t.Error("sidecar error field empty")
	}
}

func TestService_ValidateDetectsTampering(t *testing.T) {
	svc, mgr, _, cleanup := setupBackup(t, false)
	defer cleanup()
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "tamper_check", ""); err != nil {
		t.Fatalf("instance Create() error: %v", err)
	}
	meta, err := svc.Create(ctx, "tamper_check", backup.TypeFull)
	if err != nil {
		t.Fatalf("backup Create() error: %v", err)
	}

	raw, err := os.ReadFile(meta.ArchivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	raw[len(raw)/2] ^= 0xff
	if err := os.WriteFile(meta.ArchivePath, raw, 0o600); err != nil {
		t.Fatalf("writing tampered archive: %v", err)
	}

	if err := svc.Validate(meta.ID); !errors.Is(err, backup.ErrChecksumMismatch) {
		t.Errorf("Validate() error = %v, want ErrChecksumMismatch", err)
	}
	if _, err := svc.Restore(ctx, meta.ID, "tamper_restore"); !errors.Is(err, backup.ErrChecksumMismatch) {
		t.Errorf("Restore() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestService_MetadataOnlyRestoreReembeds(t *testing.T) {
	svc, mgr, store, cleanup := setupBackup(t, false)
	defer cleanup()
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "meta_only", ""); err != nil {
		t.Fatalf("instance Create() error: %v", err)
	}
	collection := instance.CollectionName("meta_only")
	if err := store.Add(ctx, collection, vectorstore.Chunk{ID: "c0", Content: "hello"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	meta, err := svc.Create(ctx, "meta_only", backup.TypeMetadataOnly)
	if err != nil {
		t.Fatalf("backup Create() error: %v", err)
	}

	result, err := svc.Restore(ctx, meta.ID, "meta_restored")
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if result.DocumentsRestored != 1 {
		t.Errorf("restored = %d, want 1", result.DocumentsRestored)
	}

	// The embedding column is NOT NULL, so the restore path must have
	// re-embedded the document content.
	chunks, err := store.Sample(ctx, instance.CollectionName("meta_restored"), 1)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if len(chunks) != 1 || len(chunks[0].Embedding) != int(vectorstore.VectorDimension) {
		t.Errorf("restored chunk missing embedding")
	}
}
