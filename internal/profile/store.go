// Package profile tracks per-user research interests and personalizes
// retrieval with them.
//
// Interests are learned from queries: each tracked topic is embedded
// and deduplicated against the user's existing interests by nearest
// neighbor, so "transformer models" and "transformers" converge on one
// interest instead of fragmenting the profile.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/aischolar/scholar/internal/vectorstore"
)

// Dedup and weight parameters.
const (
	// MergeThreshold is the cosine similarity above which a tracked
	// topic merges into an existing interest.
	MergeThreshold = 0.90

	// InitialWeight seeds a new interest.
	InitialWeight = 0.5

	// HitBoost is added to an interest's weight on each repeat hit.
	HitBoost = 0.05

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 30 * time.Second

	// MaxTopicLength bounds tracked topics.
	MaxTopicLength = 256
)

// Interest is one weighted topic in a user's profile.
type Interest struct {
	ID        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	Weight    float32   `json:"weight"`
	Hits      int       `json:"hits"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists interest profiles in PostgreSQL.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a profile store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:     pool,
		embedder: embedder,
		logger:   logger.With("component", "profile"),
	}, nil
}

// Track records one topic hit for a user. Topics within MergeThreshold
// of an existing interest merge into it (weight and hit count grow);
// otherwise a new interest is created.
func (s *Store) Track(ctx context.Context, userID, topic string) error {
	topic = strings.TrimSpace(topic)
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	topic = truncate(topic, MaxTopicLength)

	// Embed outside the transaction so no connection is held during the
	// API call.
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()
	vec, err := s.embed(embedCtx, topic)
	if err != nil {
		return fmt.Errorf("embedding topic: %w", err)
	}
	embedding := pgvector.NewVector(vec)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("profile transaction rollback", "error", rbErr)
		}
	}()

	// Serialize concurrent Track() calls per user; two nearest-neighbor
	// lookups racing would otherwise both insert.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("acquiring profile lock: %w", err)
	}

	var nearestID uuid.UUID
	var similarity float64
	err = tx.QueryRow(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS similarity
		 FROM interests
		 WHERE user_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT 1`, &embedding, userID).Scan(&nearestID, &similarity)

	switch {
	case errors.Is(err, pgx.ErrNoRows) || (err == nil && similarity < MergeThreshold):
		_, err = tx.Exec(ctx,
			`INSERT INTO interests (user_id, topic, embedding, weight)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, md5(topic))
			 DO UPDATE SET hits = interests.hits + 1,
			               weight = LEAST(interests.weight + $5, 1.0),
			               updated_at = now()`,
			userID, topic, &embedding, InitialWeight, HitBoost)
		if err != nil {
			return fmt.Errorf("inserting interest: %w", err)
		}
	case err != nil:
		return fmt.Errorf("querying nearest interest: %w", err)
	default:
		// Merge: the existing topic name wins, the weight grows.
		_, err = tx.Exec(ctx,
			`UPDATE interests
			 SET hits = hits + 1,
			     weight = LEAST(weight + $1, 1.0),
			     updated_at = now()
			 WHERE id = $2`, HitBoost, nearestID)
		if err != nil {
			return fmt.Errorf("merging interest: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing profile transaction: %w", err)
	}
	return nil
}

// Interests returns the user's interests, heaviest first.
func (s *Store) Interests(ctx context.Context, userID string, limit int) ([]Interest, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, topic, weight, hits, updated_at
		 FROM interests
		 WHERE user_id = $1
		 ORDER BY weight DESC, hits DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing interests: %w", err)
	}
	defer rows.Close()

	var interests []Interest
	for rows.Next() {
		var in Interest
		if err := rows.Scan(&in.ID, &in.Topic, &in.Weight, &in.Hits, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning interest: %w", err)
		}
		interests = append(interests, in)
	}
	return interests, rows.Err()
}

// Decay multiplies all of a user's interest weights by factor, dropping
// interests that fall below the floor. Periodic decay keeps stale
// interests from dominating the profile forever.
func (s *Store) Decay(ctx context.Context, userID string, factor float32) error {
	if factor <= 0 || factor >= 1 {
		return fmt.Errorf("decay factor must be in (0, 1), got %f", factor)
	}
	const floor = 0.05

	tag, err := s.pool.Exec(ctx,
		`UPDATE interests SET weight = weight * $1, updated_at = now()
		 WHERE user_id = $2`, factor, userID)
	if err != nil {
		return fmt.Errorf("decaying interests: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM interests WHERE user_id = $1 AND weight < $2`, userID, floor); err != nil {
		return fmt.Errorf("pruning decayed interests: %w", err)
	}

	s.logger.Debug("interests decayed", "user", userID, "affected", tag.RowsAffected())
	return nil
}

// Forget removes one interest by id.
func (s *Store) Forget(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM interests WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("forgetting interest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("interest %s not found", id)
	}
	return nil
}

// truncate caps s at max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// embed generates an embedding for a topic.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	dim := vectorstore.VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Embedding, nil
}
