package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aischolar/scholar/internal/config"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// Service creates and restores instance backups on local disk.
type Service struct {
	store  *vectorstore.Store
	cfg    config.BackupConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a backup service. The backup directory is created
// if it does not exist.
func NewService(store *vectorstore.Store, cfg config.BackupConfig, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "backup"),
		now:    time.Now,
	}, nil
}

// Create archives the named instance's collection. The returned metadata
// reflects the final status; on failure the sidecar records the error
// and the partial archive is removed.
//
// Create holds the backup directory lock for the whole run, so a
// retention sweep cannot delete the partial archive or the base chain
// of an incremental mid-diff.
func (s *Service) Create(ctx context.Context, instanceName string, backupType Type) (Metadata, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return Metadata{}, err
	}
	if !backupType.Valid() {
		return Metadata{}, fmt.Errorf("unknown backup type %q", backupType)
	}

	lock, err := s.lockDir(ctx)
	if err != nil {
		return Metadata{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release backup directory lock", "error", err)
		}
	}()

	now := s.now().UTC()
	id := fmt.Sprintf("%s_%s", instanceName, now.Format("20060102T150405Z"))
	archivePath := filepath.Join(s.cfg.Dir, archiveFilename(id, s.cfg.Compress))

	meta := Metadata{
		ID:           id,
		InstanceName: instanceName,
		Type:         backupType,
		Status:       StatusPending,
		ArchivePath:  archivePath,
		Compressed:   s.cfg.Compress,
		CreatedAt:    now,
	}
	if backupType == TypeIncremental {
		base, err := s.latestCompleted(instanceName)
		if err != nil {
			return Metadata{}, err
		}
		// No prior backup: the incremental degenerates to a full dump.
		meta.BaseID = base
	}
	if err := writeSidecar(meta); err != nil {
		return Metadata{}, err
	}

	meta, err = s.run(ctx, meta)
	if err != nil {
		return meta, err
	}
	s.logger.Info("backup completed",
		"id", meta.ID, "instance", instanceName,
		"type", backupType, "documents", meta.DocumentCount,
		"size_bytes", meta.SizeBytes)
	return meta, nil
}

// run moves the backup through in_progress to a terminal status.
func (s *Service) run(ctx context.Context, meta Metadata) (Metadata, error) {
	var err error
	if meta.Status, err = meta.Status.Transition(StatusInProgress); err != nil {
		return meta, err
	}
	if err := writeSidecar(meta); err != nil {
		return meta, err
	}

	fail := func(cause error) (Metadata, error) {
		meta.Status, _ = meta.Status.Transition(StatusFailed)
		meta.Error = cause.Error()
		meta.CompletedAt = s.now().UTC()
		if werr := writeSidecar(meta); werr != nil {
			s.logger.Error("failed to record backup failure", "id", meta.ID, "error", werr)
		}
		_ = os.Remove(meta.ArchivePath)
		return meta, cause
	}

	includeEmbeddings := meta.Type != TypeMetadataOnly
	dump, err := s.store.Get(ctx, instance.CollectionName(meta.InstanceName), includeEmbeddings)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return fail(fmt.Errorf("%w: %q", instance.ErrInstanceNotFound, meta.InstanceName))
		}
		return fail(fmt.Errorf("dumping instance %q: %w", meta.InstanceName, err))
	}

	if meta.Type == TypeIncremental && meta.BaseID != "" {
		baseline, err := s.chainIDs(meta.BaseID)
		if err != nil {
			return fail(err)
		}
		dump = filterDump(dump, baseline)
	}

	raw, checksum, err := encodeArchive(dump, meta.Type, meta.Compressed, meta.BaseID, meta.CreatedAt)
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(meta.ArchivePath, raw, 0o600); err != nil {
		return fail(fmt.Errorf("writing archive: %w", err))
	}

	meta.Checksum = checksum
	meta.DocumentCount = len(dump.IDs)
	meta.SizeBytes = int64(len(raw))
	meta.CompletedAt = s.now().UTC()
	if meta.Status, err = meta.Status.Transition(StatusCompleted); err != nil {
		return fail(err)
	}
	if err := writeSidecar(meta); err != nil {
		return fail(err)
	}
	return meta, nil
}

// maxChainDepth bounds incremental base chains. Deeper chains indicate
// a sidecar cycle or a runaway schedule configuration.
const maxChainDepth = 100

// latestCompleted returns the id of the newest completed backup for an
// instance, or "" when none exists.
func (s *Service) latestCompleted(instanceName string) (string, error) {
	backups, err := s.List(instanceName)
	if err != nil {
		return "", err
	}
	for _, meta := range backups {
		if meta.Status == StatusCompleted {
			return meta.ID, nil
		}
	}
	return "", nil
}

// chainIDs collects every chunk id reachable along the base chain
// starting at id.
func (s *Service) chainIDs(id string) (map[string]bool, error) {
	ids := make(map[string]bool)
	visited := make(map[string]bool)
	for depth := 0; id != ""; depth++ {
		if depth >= maxChainDepth {
			return nil, fmt.Errorf("backup chain exceeds %d links", maxChainDepth)
		}
		if visited[id] {
			return nil, fmt.Errorf("backup chain contains a cycle at %q", id)
		}
		visited[id] = true

		meta, err := s.Get(id)
		if err != nil {
			return nil, fmt.Errorf("resolving base backup: %w", err)
		}
		// #nosec G304 -- archive path comes from the sidecar in the backup dir
		raw, err := os.ReadFile(meta.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("reading base archive %q: %w", id, err)
		}
		payload, err := decodeArchive(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding base archive %q: %w", id, err)
		}
		for _, chunkID := range payload.Data.IDs {
			ids[chunkID] = true
		}
		id = meta.BaseID
	}
	return ids, nil
}

// filterDump returns a copy of dump without the chunks whose ids are in
// exclude. The parallel slices stay aligned.
func filterDump(dump *vectorstore.Dump, exclude map[string]bool) *vectorstore.Dump {
	out := &vectorstore.Dump{Info: dump.Info}
	for i, id := range dump.IDs {
		if exclude[id] {
			continue
		}
		out.IDs = append(out.IDs, id)
		if i < len(dump.Documents) {
			out.Documents = append(out.Documents, dump.Documents[i])
		}
		if i < len(dump.Metadatas) {
			out.Metadatas = append(out.Metadatas, dump.Metadatas[i])
		}
		if i < len(dump.Embeddings) {
			out.Embeddings = append(out.Embeddings, dump.Embeddings[i])
		}
	}
	return out
}

// Get loads a backup's metadata by id.
func (s *Service) Get(id string) (Metadata, error) {
	backups, err := s.List("")
	if err != nil {
		return Metadata{}, err
	}
	for _, meta := range backups {
		if meta.ID == id {
			return meta, nil
		}
	}
	return Metadata{}, fmt.Errorf("%w: %q", ErrBackupNotFound, id)
}

// List returns backups newest first, optionally filtered by instance.
// History for an instance is List(instanceName).
func (s *Service) List(instanceName string) ([]Metadata, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		meta, err := readSidecar(filepath.Join(s.cfg.Dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable sidecar", "file", entry.Name(), "error", err)
			continue
		}
		if instanceName != "" && meta.InstanceName != instanceName {
			continue
		}
		backups = append(backups, meta)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Validate checks a backup's archive against its sidecar: checksum,
// structure and document count.
func (s *Service) Validate(id string) error {
	meta, err := s.Get(id)
	if err != nil {
		return err
	}
	if meta.Status != StatusCompleted {
		return fmt.Errorf("backup %q is %s, not completed", id, meta.Status)
	}

	// #nosec G304 -- archive path comes from the sidecar in the backup dir
	raw, err := os.ReadFile(meta.ArchivePath)
	if err != nil {
		return fmt.Errorf("reading archive for %q: %w", id, err)
	}
	if err := verifyChecksum(raw, meta.Checksum); err != nil {
		return err
	}

	payload, err := decodeArchive(raw)
	if err != nil {
		return err
	}
	if payload.DocumentCount != meta.DocumentCount {
		return fmt.Errorf("%w: archive has %d documents, sidecar says %d",
			ErrArchiveCorrupt, payload.DocumentCount, meta.DocumentCount)
	}
	return nil
}

// Restore loads a backup into the named target instance, creating the
// instance if needed. Incremental backups replay their whole base chain
// oldest first, so newer archives overwrite older chunks. Existing
// chunks with matching ids are overwritten; chunks without document
// text (embeddings-only archives) are skipped.
//
// Restoring an incremental whose base was removed by retention fails
// with ErrBackupNotFound.
func (s *Service) Restore(ctx context.Context, id, targetInstance string) (RecoveryResult, error) {
	start := s.now()

	if err := instance.ValidateName(targetInstance); err != nil {
		return RecoveryResult{}, err
	}
	if id == "" {
		return RecoveryResult{}, fmt.Errorf("%w: empty id", ErrBackupNotFound)
	}

	// Walk the chain newest first, validating each link.
	var payloads []*archivePayload
	visited := make(map[string]bool)
	chainID := id
	for depth := 0; chainID != ""; depth++ {
		if depth >= maxChainDepth {
			return RecoveryResult{}, fmt.Errorf("backup chain exceeds %d links", maxChainDepth)
		}
		if visited[chainID] {
			return RecoveryResult{}, fmt.Errorf("backup chain contains a cycle at %q", chainID)
		}
		visited[chainID] = true

		meta, err := s.Get(chainID)
		if err != nil {
			return RecoveryResult{}, err
		}
		if err := s.Validate(chainID); err != nil {
			return RecoveryResult{}, fmt.Errorf("validating backup %q: %w", chainID, err)
		}
		// #nosec G304 -- archive path comes from the sidecar in the backup dir
		raw, err := os.ReadFile(meta.ArchivePath)
		if err != nil {
			return RecoveryResult{}, fmt.Errorf("reading archive %q: %w", chainID, err)
		}
		payload, err := decodeArchive(raw)
		if err != nil {
			return RecoveryResult{}, err
		}
		payloads = append(payloads, payload)
		chainID = meta.BaseID
	}

	collection := instance.CollectionName(targetInstance)
	if _, err := s.store.GetCollection(ctx, collection); err != nil {
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return RecoveryResult{}, fmt.Errorf("checking target instance: %w", err)
		}
		colMeta := payloads[0].CollectionMetadata
		if colMeta == nil {
			colMeta = make(map[string]string)
		}
		colMeta["instance_name"] = targetInstance
		if _, err := s.store.CreateCollection(ctx, collection, targetInstance, colMeta); err != nil {
			return RecoveryResult{}, fmt.Errorf("creating target instance: %w", err)
		}
	}

	result := RecoveryResult{InstanceName: targetInstance, BackupID: id}
	for i := len(payloads) - 1; i >= 0; i-- {
		if err := s.restorePayload(ctx, collection, payloads[i], &result); err != nil {
			return result, err
		}
	}

	result.Duration = s.now().Sub(start)
	s.logger.Info("restore completed",
		"backup_id", id, "instance", targetInstance,
		"restored", result.DocumentsRestored, "skipped", result.DocumentsSkipped,
		"duration", result.Duration)
	return result, nil
}

// restorePayload upserts one archive's chunks into the collection.
func (s *Service) restorePayload(ctx context.Context, collection string, payload *archivePayload, result *RecoveryResult) error {
	for i, chunkID := range payload.Data.IDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := vectorstore.Chunk{ID: chunkID}
		if i < len(payload.Data.Documents) {
			chunk.Content = payload.Data.Documents[i]
		}
		if i < len(payload.Data.Metadatas) {
			chunk.Metadata = payload.Data.Metadatas[i]
		}
		if i < len(payload.Data.Embeddings) {
			chunk.Embedding = payload.Data.Embeddings[i]
		}
		if chunk.Content == "" {
			result.DocumentsSkipped++
			continue
		}

		if err := s.store.Add(ctx, collection, chunk); err != nil {
			return fmt.Errorf("restoring chunk %q: %w", chunkID, err)
		}
		result.DocumentsRestored++
	}
	return nil
}

// Delete removes a backup's archive and sidecar.
func (s *Service) Delete(id string) error {
	meta, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(meta.ArchivePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing archive: %w", err)
	}
	if err := os.Remove(sidecarPath(meta.ArchivePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing sidecar: %w", err)
	}
	s.logger.Info("backup deleted", "id", id)
	return nil
}
