package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/aischolar/scholar/internal/vectorstore"
)

// archivePayload is the on-disk JSON shape of one backup archive.
type archivePayload struct {
	BackupVersion      string            `json:"backup_version"`
	BackupTimestamp    time.Time         `json:"backup_timestamp"`
	BaseBackupID       string            `json:"base_backup_id,omitempty"`
	InstanceName       string            `json:"instance_name"`
	CollectionMetadata map[string]string `json:"collection_metadata"`
	DocumentCount      int               `json:"document_count"`
	Data               archiveData       `json:"data"`
}

// archiveData mirrors vectorstore.Dump's parallel slices.
type archiveData struct {
	IDs        []string            `json:"ids"`
	Documents  []string            `json:"documents,omitempty"`
	Metadatas  []map[string]string `json:"metadatas,omitempty"`
	Embeddings [][]float32         `json:"embeddings,omitempty"`
}

// encodeArchive serializes a collection dump according to the backup type
// and returns the archive bytes plus their hex SHA-256 checksum. baseID
// is empty except for incremental backups, whose dump holds only the
// chunks absent from the base chain.
func encodeArchive(dump *vectorstore.Dump, backupType Type, compress bool, baseID string, now time.Time) ([]byte, string, error) {
	payload := archivePayload{
		BackupVersion:      FormatVersion,
		BackupTimestamp:    now.UTC(),
		BaseBackupID:       baseID,
		InstanceName:       dump.Info.InstanceName,
		CollectionMetadata: dump.Info.Metadata,
		DocumentCount:      len(dump.IDs),
		Data:               archiveData{IDs: dump.IDs},
	}

	switch backupType {
	case TypeFull, TypeIncremental:
		payload.Data.Documents = dump.Documents
		payload.Data.Metadatas = dump.Metadatas
		payload.Data.Embeddings = dump.Embeddings
	case TypeMetadataOnly:
		payload.Data.Documents = dump.Documents
		payload.Data.Metadatas = dump.Metadatas
	case TypeEmbeddingsOnly:
		payload.Data.Embeddings = dump.Embeddings
	default:
		return nil, "", fmt.Errorf("unknown backup type %q", backupType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encoding archive: %w", err)
	}

	if compress {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(raw); err != nil {
			return nil, "", fmt.Errorf("compressing archive: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, "", fmt.Errorf("finalizing compression: %w", err)
		}
		raw = buf.Bytes()
	}

	sum := sha256.Sum256(raw)
	return raw, hex.EncodeToString(sum[:]), nil
}

// decodeArchive reads archive bytes back into a payload, transparently
// handling gzip, and runs structural checks on the parallel slices.
func decodeArchive(raw []byte) (*archivePayload, error) {
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip header: %v", ErrArchiveCorrupt, err)
		}
		defer gr.Close()
		raw, err = io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("%w: decompression failed: %v", ErrArchiveCorrupt, err)
		}
	}

	var payload archivePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}

	if major, _, ok := strings.Cut(payload.BackupVersion, "."); !ok || major != "1" {
		return nil, fmt.Errorf("%w: %q", ErrVersionUnsupported, payload.BackupVersion)
	}
	if payload.InstanceName == "" {
		return nil, fmt.Errorf("%w: missing instance name", ErrArchiveCorrupt)
	}
	if payload.DocumentCount != len(payload.Data.IDs) {
		return nil, fmt.Errorf("%w: document_count %d does not match %d ids",
			ErrArchiveCorrupt, payload.DocumentCount, len(payload.Data.IDs))
	}
	n := len(payload.Data.IDs)
	if d := len(payload.Data.Documents); d != 0 && d != n {
		return nil, fmt.Errorf("%w: %d documents for %d ids", ErrArchiveCorrupt, d, n)
	}
	if m := len(payload.Data.Metadatas); m != 0 && m != n {
		return nil, fmt.Errorf("%w: %d metadatas for %d ids", ErrArchiveCorrupt, m, n)
	}
	if e := len(payload.Data.Embeddings); e != 0 && e != n {
		return nil, fmt.Errorf("%w: %d embeddings for %d ids", ErrArchiveCorrupt, e, n)
	}
	return &payload, nil
}

// verifyChecksum compares the archive bytes against the sidecar checksum.
func verifyChecksum(raw []byte, want string) error {
	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, want)
	}
	return nil
}

// archiveFilename builds the archive file name for a backup id.
func archiveFilename(id string, compressed bool) string {
	if compressed {
		return id + ".json.gz"
	}
	return id + ".json"
}

// sidecarPath derives the metadata sidecar path from the archive path.
func sidecarPath(archivePath string) string {
	base := strings.TrimSuffix(archivePath, ".gz")
	base = strings.TrimSuffix(base, ".json")
	return base + ".meta.json"
}

// writeSidecar persists the metadata sidecar atomically via rename.
func writeSidecar(meta Metadata) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	path := sidecarPath(meta.ArchivePath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming sidecar: %w", err)
	}
	return nil
}

// readSidecar loads a metadata sidecar.
func readSidecar(path string) (Metadata, error) {
	// #nosec G304 -- sidecar paths are derived from the configured backup dir
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parsing sidecar %s: %w", filepath.Base(path), err)
	}
	return meta, nil
}
