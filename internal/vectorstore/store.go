package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// EmbedTimeout bounds a single embedding call.
const EmbedTimeout = 30 * time.Second

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages collections of embedded chunks in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
	cache    *embedCache
}

// New creates a vector store.
func New(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
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
		logger:   logger,
		cache:    newEmbedCache(),
	}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Embedding, nil
}

// embedQuery embeds query text through the in-process cache.
func (s *Store) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.cache.get(text); ok {
		return vec, nil
	}
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.put(text, vec)
	return vec, nil
}

// CreateCollection creates a new named collection owned by instanceName.
// Returns ErrCollectionExists if the name is already taken.
func (s *Store) CreateCollection(ctx context.Context, name, instanceName string, metadata map[string]string) (CollectionInfo, error) {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("marshaling collection metadata: %w", err)
	}

	info := CollectionInfo{Name: name, InstanceName: instanceName, Metadata: metadata}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO collections (name, instance_name, metadata)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		name, instanceName, metadataJSON,
	).Scan(&info.ID, &info.CreatedAt, &info.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return CollectionInfo{}, fmt.Errorf("%w: %q", ErrCollectionExists, name)
		}
		return CollectionInfo{}, fmt.Errorf("creating collection %q: %w", name, err)
	}

	s.logger.Debug("collection created", "name", name, "instance", instanceName)
	return info, nil
}

// GetCollection looks up a collection by name.
// Returns ErrCollectionNotFound if it does not exist.
func (s *Store) GetCollection(ctx context.Context, name string) (CollectionInfo, error) {
	var info CollectionInfo
	var metadataJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, instance_name, metadata, created_at, updated_at
		 FROM collections WHERE name = $1`, name,
	).Scan(&info.ID, &info.Name, &info.InstanceName, &metadataJSON, &info.CreatedAt, &info.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CollectionInfo{}, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
		}
		return CollectionInfo{}, fmt.Errorf("getting collection %q: %w", name, err)
	}

	if err := json.Unmarshal(metadataJSON, &info.Metadata); err != nil {
		s.logger.Warn("failed to parse collection metadata", "collection", name, "error", err)
		info.Metadata = make(map[string]string)
	}
	return info, nil
}

// ListCollections returns all collections ordered by creation time.
func (s *Store) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, instance_name, metadata, created_at, updated_at
		 FROM collections ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var infos []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		var metadataJSON []byte
		if err := rows.Scan(&info.ID, &info.Name, &info.InstanceName, &metadataJSON,
			&info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning collection row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &info.Metadata); err != nil {
			info.Metadata = make(map[string]string)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return infos, nil
}

// DeleteCollection removes a collection and all its chunks (cascade).
// Returns ErrCollectionNotFound if it does not exist.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM collections WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting collection %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	s.logger.Debug("collection deleted", "name", name)
	return nil
}

// touchCollection bumps the collection's updated_at after a write.
func (s *Store) touchCollection(ctx context.Context, q querier, collectionID uuid.UUID) {
	if _, err := q.Exec(ctx,
		`UPDATE collections SET updated_at = now() WHERE id = $1`, collectionID); err != nil {
		s.logger.Warn("failed to touch collection", "collection_id", collectionID, "error", err)
	}
}

// Add upserts a chunk into the named collection.
// If chunk.Embedding is empty, the content is embedded via the configured
// embedder. The owning instance name is always stamped into chunk metadata.
func (s *Store) Add(ctx context.Context, collection string, chunk Chunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if chunk.Content == "" {
		return fmt.Errorf("chunk content is required")
	}

	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return err
	}

	vec := chunk.Embedding
	if len(vec) == 0 {
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		defer cancel()
		vec, err = s.embed(embedCtx, chunk.Content)
		if err != nil {
			return fmt.Errorf("embedding chunk %q: %w", chunk.ID, err)
		}
	}

	metadata := make(map[string]string, len(chunk.Metadata)+1)
	for k, v := range chunk.Metadata {
		metadata[k] = v
	}
	// Ownership stamp: separation audits rely on this key matching the
	// collection's instance.
	metadata[MetadataInstanceKey] = info.InstanceName

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling chunk metadata: %w", err)
	}

	embedding := pgvector.NewVector(vec)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO chunks (collection_id, id, content, embedding, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (collection_id, id)
		 DO UPDATE SET content = EXCLUDED.content,
		               embedding = EXCLUDED.embedding,
		               metadata = EXCLUDED.metadata`,
		info.ID, chunk.ID, chunk.Content, &embedding, metadataJSON)
	if err != nil {
		return fmt.Errorf("upserting chunk %q: %w", chunk.ID, err)
	}

	s.touchCollection(ctx, s.pool, info.ID)
	s.logger.Debug("chunk added", "collection", collection, "id", chunk.ID,
		"content_length", len(chunk.Content))
	return nil
}

// Query performs vector similarity search over the named collection.
//
// Example:
//
//	results, err := store.Query(ctx, col, "transformer attention",
//	    vectorstore.WithTopK(10),
//	    vectorstore.WithFilter("source_type", "paper"))
func (s *Store) Query(ctx context.Context, collection, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec, err := s.embedQuery(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryEmbedding := pgvector.NewVector(vec)

	// filterJSON is always produced by json.Marshal and matched with the
	// parameterized JSONB @> operator; never interpolate filter values.
	var rows pgx.Rows
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = s.pool.Query(queryCtx,
			`SELECT id, content, metadata, created_at,
			        1 - (embedding <=> $1) AS similarity
			 FROM chunks
			 WHERE collection_id = $2 AND metadata @> $3
			 ORDER BY embedding <=> $1
			 LIMIT $4`,
			&queryEmbedding, info.ID, filterJSON, cfg.topK)
	} else {
		rows, err = s.pool.Query(queryCtx,
			`SELECT id, content, metadata, created_at,
			        1 - (embedding <=> $1) AS similarity
			 FROM chunks
			 WHERE collection_id = $2
			 ORDER BY embedding <=> $1
			 LIMIT $3`,
			&queryEmbedding, info.ID, cfg.topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var chunk Chunk
		var metadataJSON []byte
		var similarity float64
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON,
			&chunk.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", chunk.ID, "error", err)
			chunk.Metadata = make(map[string]string)
		}
		results = append(results, Result{Chunk: chunk, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// Get exports the full collection, optionally including embeddings.
// This is the backup path; large collections stream through a single query.
func (s *Store) Get(ctx context.Context, collection string, includeEmbeddings bool) (*Dump, error) {
	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, content, metadata, embedding
		 FROM chunks WHERE collection_id = $1 ORDER BY id`, info.ID)
	if err != nil {
		return nil, fmt.Errorf("dumping collection %q: %w", collection, err)
	}
	defer rows.Close()

	dump := &Dump{Info: info}
	for rows.Next() {
		var id, content string
		var metadataJSON []byte
		var embedding pgvector.Vector
		if err := rows.Scan(&id, &content, &metadataJSON, &embedding); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}

		var metadata map[string]string
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", id, "error", err)
			metadata = make(map[string]string)
		}

		dump.IDs = append(dump.IDs, id)
		dump.Documents = append(dump.Documents, content)
		dump.Metadatas = append(dump.Metadatas, metadata)
		if includeEmbeddings {
			dump.Embeddings = append(dump.Embeddings, embedding.Slice())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return dump, nil
}

// Sample returns up to limit chunks with embeddings, ordered by id.
// Used by health checks; the bound keeps scans cheap on large collections.
func (s *Store) Sample(ctx context.Context, collection string, limit int) ([]Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, content, metadata, embedding, created_at
		 FROM chunks WHERE collection_id = $1 ORDER BY id LIMIT $2`,
		info.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling collection %q: %w", collection, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadataJSON []byte
		var embedding pgvector.Vector
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON,
			&embedding, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning sample row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			chunk.Metadata = make(map[string]string)
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sample: %w", err)
	}
	return chunks, nil
}

// Count returns the number of chunks in the named collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection_id = $1`, info.ID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteChunk removes one chunk from the named collection.
// Returns ErrChunkNotFound if the chunk does not exist.
func (s *Store) DeleteChunk(ctx context.Context, collection, chunkID string) error {
	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE collection_id = $1 AND id = $2`, info.ID, chunkID)
	if err != nil {
		return fmt.Errorf("deleting chunk %q: %w", chunkID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrChunkNotFound, chunkID)
	}

	s.touchCollection(ctx, s.pool, info.ID)
	return nil
}

// DeleteByDocID removes every chunk belonging to a source document and
// returns how many were deleted. Chunk ids are content-derived, so
// re-ingesting an edited document would otherwise leave the old
// chunks behind.
func (s *Store) DeleteByDocID(ctx context.Context, collection, docID string) (int64, error) {
	if docID == "" {
		return 0, fmt.Errorf("document ID is required")
	}
	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return 0, err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE collection_id = $1 AND metadata->>'doc_id' = $2`,
		info.ID, docID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for document %q: %w", docID, err)
	}

	removed := tag.RowsAffected()
	if removed > 0 {
		s.touchCollection(ctx, s.pool, info.ID)
	}
	return removed, nil
}

// CacheStats returns embedding cache hit/miss counters.
func (s *Store) CacheStats() (hits, misses uint64) {
	return s.cache.stats()
}

// ClearCache drops all cached query embeddings.
func (s *Store) ClearCache() {
	s.cache.clear()
	s.logger.Debug("embedding cache cleared")
}

// ResetCacheCounters zeroes the cache hit/miss counters.
func (s *Store) ResetCacheCounters() {
	s.cache.resetCounters()
}
