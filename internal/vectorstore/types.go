package vectorstore

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding dimensionality stored in pgvector.
// gemini-embedding-001 is truncated to this size via OutputDimensionality;
// the chunks.embedding column is vector(768).
const VectorDimension int32 = 768

// MetadataInstanceKey is the chunk metadata key that records the owning
// instance. Stamped on every write; audited by instance.Manager.
const MetadataInstanceKey = "instance_name"

var (
	// ErrCollectionExists is returned when creating a collection whose name is taken.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrChunkNotFound is returned when a chunk does not exist.
	ErrChunkNotFound = errors.New("chunk not found")
)

// Chunk is one stored document segment.
type Chunk struct {
	ID        string            // Unique within its collection
	Content   string            // Chunk text
	Metadata  map[string]string // Free-form string metadata
	Embedding []float32         // Optional: provided on restore, populated by Get/Sample
	CreatedAt time.Time
}

// Result is a single search result with similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float32 // Cosine similarity (0-1)
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	ID           uuid.UUID
	Name         string
	InstanceName string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Dump is a full collection export, used by the backup service.
// The parallel slices share one index: IDs[i], Documents[i], Metadatas[i],
// Embeddings[i] describe the same chunk.
type Dump struct {
	Info       CollectionInfo
	IDs        []string
	Documents  []string
	Metadatas  []map[string]string
	Embeddings [][]float32
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// DefaultSearchTimeout bounds vector search queries to prevent blocking.
const DefaultSearchTimeout = 10 * time.Second

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
// Example: WithFilter("source_type", "paper")
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the default per-query timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
