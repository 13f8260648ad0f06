// Package backup implements archive creation, restore and retention for
// instance collections.
//
// An archive is a JSON document (optionally gzip-compressed) holding the
// full collection dump, written next to a metadata sidecar that records
// the SHA-256 checksum of the archive bytes. Every backup moves through
// a small state machine: pending, in_progress, then completed or failed.
package backup

import (
	"errors"
	"fmt"
	"time"
)

// FormatVersion is written into every archive; Restore rejects archives
// with a newer major version.
const FormatVersion = "1.0"

// Type selects what a backup carries.
type Type string

const (
	// TypeFull archives documents, metadata and embeddings.
	TypeFull Type = "full"
	// TypeMetadataOnly archives documents and metadata without embeddings.
	// Restores from it re-embed on ingest.
	TypeMetadataOnly Type = "metadata-only"
	// TypeEmbeddingsOnly archives ids and embeddings without document text.
	TypeEmbeddingsOnly Type = "embeddings-only"
	// TypeIncremental archives only chunks absent from the base backup
	// chain. Chunk ids are content-derived, so edits appear as new ids
	// and are captured. With no prior completed backup an incremental
	// is equivalent to a full backup.
	TypeIncremental Type = "incremental"
)

// Valid reports whether t is a known backup type.
func (t Type) Valid() bool {
	switch t {
	case TypeFull, TypeMetadataOnly, TypeEmbeddingsOnly, TypeIncremental:
		return true
	}
	return false
}

// Status is a backup's position in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrInvalidTransition is returned for disallowed status changes.
var ErrInvalidTransition = errors.New("invalid backup status transition")

// transitions holds the allowed status edges. Completed and failed are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates and returns the next status.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// Metadata is the sidecar record written next to every archive.
type Metadata struct {
	ID            string    `json:"id"`
	InstanceName  string    `json:"instance_name"`
	Type          Type      `json:"type"`
	Status        Status    `json:"status"`
	ArchivePath   string    `json:"archive_path"`
	BaseID        string    `json:"base_id,omitempty"` // incremental: the backup this diffs against
	Checksum      string    `json:"checksum"`          // hex SHA-256 of archive bytes
	Compressed    bool      `json:"compressed"`
	DocumentCount int       `json:"document_count"`
	SizeBytes     int64     `json:"size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// RecoveryResult reports the outcome of a restore.
type RecoveryResult struct {
	InstanceName      string        `json:"instance_name"`
	BackupID          string        `json:"backup_id"`
	DocumentsRestored int           `json:"documents_restored"`
	DocumentsSkipped  int           `json:"documents_skipped"`
	Duration          time.Duration `json:"duration"`
}

var (
	// ErrBackupNotFound is returned when a backup id has no sidecar.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrChecksumMismatch is returned when archive bytes do not match the
	// sidecar checksum.
	ErrChecksumMismatch = errors.New("backup checksum mismatch")

	// ErrVersionUnsupported is returned for archives written by a newer
	// format version.
	ErrVersionUnsupported = errors.New("unsupported backup format version")

	// ErrArchiveCorrupt is returned for archives that fail structural checks.
	ErrArchiveCorrupt = errors.New("backup archive corrupt")
)
