package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aischolar/scholar/internal/instance"
)

// Node is one persisted graph entity.
type Node struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Mentions  int       `json:"mentions"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge is one persisted relation with its co-occurrence weight.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float32 `json:"weight"`
}

// Neighbor is one related entity from a neighborhood query.
type Neighbor struct {
	Name   string  `json:"name"`
	Weight float32 `json:"weight"`
}

// Store persists the knowledge graph in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a graph store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger.With("component", "graph")}, nil
}

// IndexText extracts entities and relations from text and merges them
// into the instance's graph. Mention and co-occurrence counts
// accumulate across calls; weights are renormalized per source entity.
func (s *Store) IndexText(ctx context.Context, instanceName, text string) (entities, relations int, err error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return 0, 0, err
	}

	extracted, cooccurrences := Extract(text)
	if len(extracted) == 0 {
		return 0, 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning graph transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make(map[string]uuid.UUID, len(extracted))
	for _, entity := range extracted {
		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO graph_entities (instance_name, name, mentions)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (instance_name, name)
			 DO UPDATE SET mentions = graph_entities.mentions + EXCLUDED.mentions,
			               updated_at = now()
			 RETURNING id`,
			instanceName, entity.Name, entity.Mentions).Scan(&id)
		if err != nil {
			return 0, 0, fmt.Errorf("upserting entity %q: %w", entity.Name, err)
		}
		ids[entity.Name] = id
	}

	for _, co := range cooccurrences {
		sourceID, targetID := ids[co.Source], ids[co.Target]
		_, err := tx.Exec(ctx,
			`INSERT INTO graph_relations (instance_name, source_id, target_id, cooccurrences)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (source_id, target_id)
			 DO UPDATE SET cooccurrences = graph_relations.cooccurrences + EXCLUDED.cooccurrences,
			               updated_at = now()`,
			instanceName, sourceID, targetID, co.Count)
		if err != nil {
			return 0, 0, fmt.Errorf("upserting relation %q -> %q: %w", co.Source, co.Target, err)
		}
	}

	// Renormalize weights so each relation's weight is its share of the
	// source entity's total co-occurrences, clamped into [0, 1] by
	// construction.
	_, err = tx.Exec(ctx,
		`UPDATE graph_relations r
		 SET weight = r.cooccurrences::real / GREATEST(t.total, 1)
		 FROM (SELECT source_id, SUM(cooccurrences) AS total
		       FROM graph_relations WHERE instance_name = $1
		       GROUP BY source_id) t
		 WHERE r.source_id = t.source_id AND r.instance_name = $1`,
		instanceName)
	if err != nil {
		return 0, 0, fmt.Errorf("renormalizing weights: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("committing graph transaction: %w", err)
	}
	return len(extracted), len(cooccurrences), nil
}

// Entities returns the instance's most-mentioned entities.
func (s *Store) Entities(ctx context.Context, instanceName string, limit int) ([]Node, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, kind, mentions, updated_at
		 FROM graph_entities
		 WHERE instance_name = $1
		 ORDER BY mentions DESC, name
		 LIMIT $2`, instanceName, limit)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Kind, &n.Mentions, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Neighbors returns entities related to the named one, strongest first.
// The query is symmetric over edge direction.
func (s *Store) Neighbors(ctx context.Context, instanceName, entityName string, limit int) ([]Neighbor, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT other.name, r.weight
		 FROM graph_relations r
		 JOIN graph_entities self
		   ON self.id IN (r.source_id, r.target_id)
		 JOIN graph_entities other
		   ON other.id IN (r.source_id, r.target_id) AND other.id <> self.id
		 WHERE self.instance_name = $1 AND self.name = $2
		 ORDER BY r.weight DESC, other.name
		 LIMIT $3`, instanceName, entityName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors of %q: %w", entityName, err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.Name, &n.Weight); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// Clear drops the instance's graph.
func (s *Store) Clear(ctx context.Context, instanceName string) error {
	if err := instance.ValidateName(instanceName); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM graph_entities WHERE instance_name = $1`, instanceName); err != nil {
		return fmt.Errorf("clearing graph for %q: %w", instanceName, err)
	}
	s.logger.Info("graph cleared", "instance", instanceName)
	return nil
}
