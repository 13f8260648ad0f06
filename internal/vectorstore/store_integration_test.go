//go:build integration

package vectorstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/aischolar/scholar/internal/testutil"
	"github.com/aischolar/scholar/internal/vectorstore"
)

func setupStore(t *testing.T) (*vectorstore.Store, *testutil.MockEmbedder, func()) {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)

	g := genkit.Init(context.Background())
	mock := testutil.NewMockEmbedder(int(vectorstore.VectorDimension))
	embedder := mock.RegisterEmbedder(g)

	store, err := vectorstore.New(db.Pool, embedder, testutil.DiscardLogger())
	if err != nil {
		cleanup()
		t.Fatalf("New() error: %v", err)
	}
	return store, mock, cleanup
}

func TestStore_CollectionLifecycle(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	info, err := store.CreateCollection(ctx, "scholar_instance_ml_papers", "ml",
		map[string]string{"description": "machine learning papers"})
	if err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}
	if info.InstanceName != "ml" {
		t.Errorf("InstanceName = %q, want ml", info.InstanceName)
	}

	// Duplicate name
	_, err = store.CreateCollection(ctx, "scholar_instance_ml_papers", "ml", nil)
	if !errors.Is(err, vectorstore.ErrCollectionExists) {
		t.Errorf("duplicate create error = %v, want ErrCollectionExists", err)
	}

	got, err := store.GetCollection(ctx, "scholar_instance_ml_papers")
	if err != nil {
		t.Fatalf("GetCollection() error: %v", err)
	}
	if got.ID != info.ID {
		t.Errorf("GetCollection ID = %v, want %v", got.ID, info.ID)
	}
	if got.Metadata["description"] != "machine learning papers" {
		t.Errorf("metadata = %v, missing description", got.Metadata)
	}

	infos, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("ListCollections() len = %d, want 1", len(infos))
	}

	if err := store.DeleteCollection(ctx, "scholar_instance_ml_papers"); err != nil {
		t.Fatalf("DeleteCollection() error: %v", err)
	}
	if err := store.DeleteCollection(ctx, "scholar_instance_ml_papers"); !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("second delete error = %v, want ErrCollectionNotFound", err)
	}
}

func TestStore_AddStampsInstance(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "scholar_instance_nlp_papers", "nlp", nil); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}

	err := store.Add(ctx, "scholar_instance_nlp_papers", vectorstore.Chunk{
		ID:       "doc1-chunk0",
		Content:  "attention is all you need",
		Metadata: map[string]string{"source_type": "paper"},
	})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	chunks, err := store.Sample(ctx, "scholar_instance_nlp_papers", 10)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Sample() len = %d, want 1", len(chunks))
	}
	if got := chunks[0].Metadata[vectorstore.MetadataInstanceKey]; got != "nlp" {
		t.Errorf("instance stamp = %q, want nlp", got)
	}
	if got := chunks[0].Metadata["source_type"]; got != "paper" {
		t.Errorf("source_type = %q, want paper", got)
	}
	if len(chunks[0].Embedding) != int(vectorstore.VectorDimension) {
		t.Errorf("embedding dim = %d, want %d", len(chunks[0].Embedding), vectorstore.VectorDimension)
	}
}

func TestStore_DeleteByDocID(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "scholar_instance_docs_papers", "docs", nil); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}

	for _, c := range []vectorstore.Chunk{
		{ID: "a0", Content: "first chunk of doc a", Metadata: map[string]string{"doc_id": "doc-a"}},
		{ID: "a1", Content: "second chunk of doc a", Metadata: map[string]string{"doc_id": "doc-a"}},
		{ID: "b0", Content: "only chunk of doc b", Metadata: map[string]string{"doc_id": "doc-b"}},
	} {
		if err := store.Add(ctx, "scholar_instance_docs_papers", c); err != nil {
			t.Fatalf("Add(%s) error: %v", c.ID, err)
		}
	}

	removed, err := store.DeleteByDocID(ctx, "scholar_instance_docs_papers", "doc-a")
	if err != nil {
		t.Fatalf("DeleteByDocID() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	chunks, err := store.Sample(ctx, "scholar_instance_docs_papers", 10)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Metadata["doc_id"] != "doc-b" {
		t.Errorf("surviving chunks = %v, want only doc-b", chunks)
	}

	// Deleting an unknown document removes nothing and is not an error.
	removed, err = store.DeleteByDocID(ctx, "scholar_instance_docs_papers", "doc-x")
	if err != nil {
		t.Fatalf("DeleteByDocID(unknown) error: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestStore_QueryRanksBySimilarity(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	// Controlled vectors: "close" is nearly parallel to the query vector,
	// "far" is orthogonal.
	dim := int(vectorstore.VectorDimension)
	base := make([]float32, dim)
	base[0] = 1
	near := make([]float32, dim)
	near[0] = 0.95
	near[1] = 0.05
	far := make([]float32, dim)
	far[1] = 1

	mock.SetVector("transformer attention", base)
	mock.SetVector("close document", near)
	mock.SetVector("far document", far)

	if _, err := store.CreateCollection(ctx, "scholar_instance_rank_papers", "rank", nil); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}
	for _, c := range []vectorstore.Chunk{
		{ID: "close", Content: "close document"},
		{ID: "far", Content: "far document", Metadata: map[string]string{"source_type": "note"}},
	} {
		if err := store.Add(ctx, "scholar_instance_rank_papers", c); err != nil {
			t.Fatalf("Add(%s) error: %v", c.ID, err)
		}
	}

	results, err := store.Query(ctx, "scholar_instance_rank_papers", "transformer attention",
		vectorstore.WithTopK(2))
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Query() len = %d, want 2", len(results))
	}
	if results[0].Chunk.ID != "close" {
		t.Errorf("top result = %q, want close", results[0].Chunk.ID)
	}
	if results[0].Similarity <= results[1].Similarity {
		t.Errorf("results not ordered by similarity: %v >= %v",
			results[0].Similarity, results[1].Similarity)
	}

	// Metadata filter restricts to the far document.
	filtered, err := store.Query(ctx, "scholar_instance_rank_papers", "transformer attention",
		vectorstore.WithFilter("source_type", "note"))
	if err != nil {
		t.Fatalf("Query() with filter error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Chunk.ID != "far" {
		t.Errorf("filtered results = %v, want single far", filtered)
	}
}

func TestStore_QueryUsesEmbedCache(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "scholar_instance_cache_papers", "cache", nil); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}

	calls := mock.Calls()
	for i := 0; i < 3; i++ {
		if _, err := store.Query(ctx, "scholar_instance_cache_papers", "repeated query"); err != nil {
			t.Fatalf("Query() error: %v", err)
		}
	}
	if got := mock.Calls() - calls; got != 1 {
		t.Errorf("embedder calls for repeated query = %d, want 1", got)
	}

	hits, misses := store.CacheStats()
	if hits != 2 || misses != 1 {
		t.Errorf("cache stats = (%d, %d), want (2, 1)", hits, misses)
	}

	store.ClearCache()
	if _, err := store.Query(ctx, "scholar_instance_cache_papers", "repeated query"); err != nil {
		t.Fatalf("Query() after clear error: %v", err)
	}
	if got := mock.Calls() - calls; got != 2 {
		t.Errorf("embedder calls after cache clear = %d, want 2", got)
	}
}

func TestStore_GetDumpRoundTrip(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "scholar_instance_dump_papers", "dump", nil); err != nil {
		t.Fatalf("CreateCollection() error: %v", err)
	}
	for _, c := range []vectorstore.Chunk{
		{ID: "a", Content: "first"},
		{ID: "b", Content: "second"},
	} {
		if err := store.Add(ctx, "scholar_instance_dump_papers", c); err != nil {
			t.Fatalf("Add(%s) error: %v", c.ID, err)
		}
	}

	dump, err := store.Get(ctx, "scholar_instance_dump_papers", true)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(dump.IDs) != 2 || len(dump.Documents) != 2 || len(dump.Embeddings) != 2 {
		t.Fatalf("dump sizes = %d/%d/%d, want 2/2/2",
			len(dump.IDs), len(dump.Documents), len(dump.Embeddings))
	}

	// Without embeddings the slice stays nil.
	lean, err := store.Get(ctx, "scholar_instance_dump_papers", false)
	if err != nil {
		t.Fatalf("Get() without embeddings error: %v", err)
	}
	if lean.Embeddings != nil {
		t.Errorf("embeddings included when excluded: %d", len(lean.Embeddings))
	}

	count, err := store.Count(ctx, "scholar_instance_dump_papers")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	if err := store.DeleteChunk(ctx, "scholar_instance_dump_papers", "a"); err != nil {
		t.Fatalf("DeleteChunk() error: %v", err)
	}
	if err := store.DeleteChunk(ctx, "scholar_instance_dump_papers", "a"); !errors.Is(err, vectorstore.ErrChunkNotFound) {
		t.Errorf("second DeleteChunk error = %v, want ErrChunkNotFound", err)
	}
}
