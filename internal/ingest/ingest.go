package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// MaxFileSize bounds a single ingested file. Larger files are skipped;
// the chunker handles documents well below this.
const MaxFileSize = 16 * 1024 * 1024

// ChunkStore is the storage surface the ingester needs. Satisfied by
// *vectorstore.Store.
type ChunkStore interface {
	Add(ctx context.Context, collection string, chunk vectorstore.Chunk) error
	DeleteByDocID(ctx context.Context, collection, docID string) (int64, error)
}

// Result summarizes one ingestion run.
type Result struct {
	DocumentsAdded int           `json:"documents_added"`
	ChunksAdded    int           `json:"chunks_added"`
	FilesSkipped   int           `json:"files_skipped"`
	FilesFailed    int           `json:"files_failed"`
	TotalBytes     int64         `json:"total_bytes"`
	Duration       time.Duration `json:"duration"`
}

// Service ingests documents into instance collections.
type Service struct {
	store      ChunkStore
	processors *registry
	chunker    *Chunker
	logger     *slog.Logger
}

// NewService creates an ingestion service with the default processors
// and chunking parameters.
func NewService(store ChunkStore, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		processors: newRegistry(defaultProcessors()...),
		chunker:    NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		logger:     logger.With("component", "ingest"),
	}, nil
}

// IngestFile ingests one file into the named instance.
func (s *Service) IngestFile(ctx context.Context, instanceName, filePath string) (Result, error) {
	start := time.Now()
	if err := instance.ValidateName(instanceName); err != nil {
		return Result{}, err
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("resolving path: %w", err)
	}

	// os.Root confines reads to the file's parent, blocking symlink
	// escapes on the read itself.
	root, err := os.OpenRoot(filepath.Dir(absPath))
	if err != nil {
		return Result{}, fmt.Errorf("opening directory: %w", err)
	}
	defer func() { _ = root.Close() }()

	result := Result{}
	if err := s.ingestOne(ctx, instanceName, root, filepath.Base(absPath), absPath, &result); err != nil {
		return result, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// IngestDirectory recursively ingests all supported files under dirPath.
// Individual file failures are counted, not fatal.
func (s *Service) IngestDirectory(ctx context.Context, instanceName, dirPath string) (Result, error) {
	start := time.Now()
	if err := instance.ValidateName(instanceName); err != nil {
		return Result{}, err
	}

	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return Result{}, fmt.Errorf("resolving path: %w", err)
	}
	root, err := os.OpenRoot(absDir)
	if err != nil {
		return Result{}, fmt.Errorf("opening directory: %w", err)
	}
	defer func() { _ = root.Close() }()

	result := Result{}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			result.FilesFailed++
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absDir {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absDir, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}
		if _, ok := s.processors.lookup(rel); !ok {
			result.FilesSkipped++
			return nil
		}
		if err := s.ingestOne(ctx, instanceName, root, rel, path, &result); err != nil {
			s.logger.Warn("file ingestion failed", "file", path, "error", err)
			result.FilesFailed++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking %s: %w", dirPath, err)
	}

	result.Duration = time.Since(start)
	s.logger.Info("directory ingested",
		"instance", instanceName, "dir", dirPath,
		"documents", result.DocumentsAdded, "chunks", result.ChunksAdded,
		"skipped", result.FilesSkipped, "failed", result.FilesFailed)
	return result, nil
}

// IngestText ingests raw text as one document. The title keys the
// document id, so re-submitting the same title replaces its chunks
// rather than duplicating them.
func (s *Service) IngestText(ctx context.Context, instanceName, title, text string, metadata map[string]string) (Result, error) {
	start := time.Now()
	if err := instance.ValidateName(instanceName); err != nil {
		return Result{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Result{}, fmt.Errorf("title is required")
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("text is required")
	}

	meta := map[string]string{
		"title":       title,
		"source_type": "text",
		"ingested_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range metadata {
		meta[k] = v
	}

	added, err := s.storeChunks(ctx, instanceName, DocID(title), text, meta)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		DocumentsAdded: 1,
		ChunksAdded:    added,
		TotalBytes:     int64(len(text)),
		Duration:       time.Since(start),
	}
	s.logger.Info("text ingested",
		"instance", instanceName, "title", title, "chunks", added)
	return result, nil
}

// ingestOne reads relPath through root, processes and chunks it, and
// stores the chunks. sourcePath is the absolute path recorded in
// metadata and used for the document id.
func (s *Service) ingestOne(ctx context.Context, instanceName string, root *os.Root, relPath, sourcePath string, result *Result) error {
	proc, ok := s.processors.lookup(relPath)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(relPath))
	}

	info, err := root.Stat(relPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.Size() > MaxFileSize {
		result.FilesSkipped++
		return nil
	}

	raw, err := root.ReadFile(relPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", relPath, err)
	}

	doc, err := proc.Process(filepath.Base(relPath), raw)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"title":       doc.Title,
		"source_type": "file",
		"source":      sourcePath,
		"ingested_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}

	added, err := s.storeChunks(ctx, instanceName, DocID(sourcePath), doc.Text, metadata)
	if err != nil {
		return err
	}

	result.DocumentsAdded++
	result.ChunksAdded += added
	result.TotalBytes += info.Size()
	return nil
}

// storeChunks splits text and upserts each chunk into the instance's
// collection. The document's existing chunks are removed first: chunk
// ids are content-derived, so an edited document would otherwise leave
// its old chunks behind alongside the new ones.
func (s *Service) storeChunks(ctx context.Context, instanceName, docID, text string, metadata map[string]string) (int, error) {
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s has no text content", docID)
	}

	collection := instance.CollectionName(instanceName)
	if removed, err := s.store.DeleteByDocID(ctx, collection, docID); err != nil {
		return 0, fmt.Errorf("removing stale chunks of %s: %w", docID, err)
	} else if removed > 0 {
		s.logger.Debug("stale chunks removed before re-ingest",
			"doc_id", docID, "removed", removed)
	}
	for i, content := range chunks {
		chunkMeta := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			chunkMeta[k] = v
		}
		chunkMeta["doc_id"] = docID
		chunkMeta["chunk_index"] = fmt.Sprintf("%d", i)

		err := s.store.Add(ctx, collection, vectorstore.Chunk{
			ID:       ChunkID(docID, i, content),
			Content:  content,
			Metadata: chunkMeta,
		})
		if err != nil {
			return i, fmt.Errorf("storing chunk %d of %s: %w", i, docID, err)
		}
	}
	return len(chunks), nil
}
