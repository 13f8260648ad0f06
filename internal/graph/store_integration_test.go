//go:build integration

package graph_test

import (
	"context"
	"testing"

	"github.com/aischolar/scholar/internal/graph"
	"github.com/aischolar/scholar/internal/testutil"
)

func TestStore_IndexAndQuery(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := graph.NewStore(db.Pool, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	text := "BERT builds on Transformers. BERT uses Attention Mechanisms. " +
		"Researchers combine Transformers with Attention Mechanisms."
	entities, relations, err := store.IndexText(ctx, "ml_research", text)
	if err != nil {
		t.Fatalf("IndexText() error: %v", err)
	}
	if entities == 0 || relations == 0 {
		t.Fatalf("IndexText() = (%d, %d), want nonzero", entities, relations)
	}

	nodes, err := store.Entities(ctx, "ml_research", 10)
	if err != nil {
		t.Fatalf("Entities() error: %v", err)
	}
	names := make(map[string]int)
	for _, n := range nodes {
		names[n.Name] = n.Mentions
	}
	if names["BERT"] != 2 {
		t.Errorf("BERT mentions = %d, want 2", names["BERT"])
	}
	if names["Transformers"] != 2 {
		t.Errorf("Transformers mentions = %d, want 2", names["Transformers"])
	}

	neighbors, err := store.Neighbors(ctx, "ml_research", "BERT", 10)
	if err != nil {
		t.Fatalf("Neighbors() error: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("Neighbors(BERT) = %v, want 2 entries", neighbors)
	}
	for _, n := range neighbors {
		if n.Weight <= 0 || n.Weight > 1 {
			t.Errorf("neighbor %q weight %f outside (0, 1]", n.Name, n.Weight)
		}
	}

	// Re-indexing the same text accumulates mentions.
	if _, _, err := store.IndexText(ctx, "ml_research", text); err != nil {
		t.Fatalf("second IndexText() error: %v", err)
	}
	nodes, err = store.Entities(ctx, "ml_research", 10)
	if err != nil {
		t.Fatalf("Entities() error: %v", err)
	}
	for _, n := range nodes {
		if n.Name == "BERT" && n.Mentions != 4 {
			t.Errorf("BERT mentions after re-index = %d, want 4", n.Mentions)
		}
	}
}

func TestStore_InstanceIsolationAndClear(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := graph.NewStore(db.Pool, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	if _, _, err := store.IndexText(ctx, "alpha", "It studies Quantum Computing deeply."); err != nil {
		t.Fatalf("IndexText(alpha) error: %v", err)
	}
	if _, _, err := store.IndexText(ctx, "beta", "It studies Genome Sequencing deeply."); err != nil {
		t.Fatalf("IndexText(beta) error: %v", err)
	}

	alpha, err := store.Entities(ctx, "alpha", 10)
	if err != nil {
		t.Fatalf("Entities(alpha) error: %v", err)
	}
	for _, n := range alpha {
		if n.Name == "Genome Sequencing" {
			t.Error("beta entity leaked into alpha")
		}
	}

	if err := store.Clear(ctx, "alpha"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	alpha, err = store.Entities(ctx, "alpha", 10)
	if err != nil {
		t.Fatalf("Entities(alpha) after clear error: %v", err)
	}
	if len(alpha) != 0 {
		t.Errorf("alpha entities after clear = %v, want none", alpha)
	}

	beta, err := store.Entities(ctx, "beta", 10)
	if err != nil {
		t.Fatalf("Entities(beta) error: %v", err)
	}
	if len(beta) == 0 {
		t.Error("beta graph lost after clearing alpha")
	}
}
