// Package monitor inspects collection health and tracks query
// performance for the optimization endpoints.
package monitor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// healthSampleLimit bounds the chunks examined per health check. The
// ratios below are estimates over this sample, not full scans.
const healthSampleLimit = 100

// HealthStatus grades a collection.
type HealthStatus string

const (
	HealthGood     HealthStatus = "good"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// Grading thresholds. A collection is degraded past the first bound and
// critical past the second.
const (
	zeroVectorDegraded = 0.01
	zeroVectorCritical = 0.10
	duplicateDegraded  = 0.05
	duplicateCritical  = 0.20
	metadataDegraded   = 0.90 // completeness below this is degraded
)

// CollectionHealth is one health check result.
type CollectionHealth struct {
	InstanceName         string       `json:"instance_name"`
	DocumentCount        int64        `json:"document_count"`
	SampleSize           int          `json:"sample_size"`
	ZeroVectorRatio      float64      `json:"zero_vector_ratio"`
	DuplicateRatio       float64      `json:"duplicate_ratio"`
	MetadataCompleteness float64      `json:"metadata_completeness"`
	Status               HealthStatus `json:"status"`
	Issues               []string     `json:"issues,omitempty"`
	CheckedAt            time.Time    `json:"checked_at"`
}

// Monitor runs health checks and records query performance.
type Monitor struct {
	store   *vectorstore.Store
	manager *instance.Manager
	logger  *slog.Logger
	perf    *perfTracker
	now     func() time.Time
}

// New creates a monitor.
func New(store *vectorstore.Store, manager *instance.Manager, logger *slog.Logger) (*Monitor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:   store,
		manager: manager,
		logger:  logger.With("component", "monitor"),
		perf:    newPerfTracker(),
		now:     time.Now,
	}, nil
}

// CheckHealth samples the named instance's collection and grades it.
func (m *Monitor) CheckHealth(ctx context.Context, instanceName string) (CollectionHealth, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return CollectionHealth{}, err
	}

	collection := instance.CollectionName(instanceName)
	count, err := m.store.Count(ctx, collection)
	if err != nil {
		return CollectionHealth{}, fmt.Errorf("health check for %q: %w", instanceName, err)
	}

	chunks, err := m.store.Sample(ctx, collection, healthSampleLimit)
	if err != nil {
		return CollectionHealth{}, fmt.Errorf("health check for %q: %w", instanceName, err)
	}

	health := CollectionHealth{
		InstanceName:  instanceName,
		DocumentCount: count,
		SampleSize:    len(chunks),
		CheckedAt:     m.now().UTC(),
	}
	if len(chunks) == 0 {
		health.Status = HealthGood
		health.MetadataCompleteness = 1
		return health, nil
	}

	var zeroVectors, withMetadata int
	seen := make(map[[32]byte]bool, len(chunks))
	var duplicates int
	for _, chunk := range chunks {
		if degenerateVector(chunk.Embedding) {
			zeroVectors++
		}
		// Duplicate detection by exact content hash within the sample.
		h := sha256.Sum256([]byte(chunk.Content))
		if seen[h] {
			duplicates++
		}
		seen[h] = true

		if hasDescriptiveMetadata(chunk.Metadata) {
			withMetadata++
		}
	}

	n := float64(len(chunks))
	health.ZeroVectorRatio = float64(zeroVectors) / n
	health.DuplicateRatio = float64(duplicates) / n
	health.MetadataCompleteness = float64(withMetadata) / n
	health.Status, health.Issues = grade(health)

	if health.Status != HealthGood {
		m.logger.Warn("collection health degraded",
			"instance", instanceName, "status", health.Status, "issues", health.Issues)
	}
	return health, nil
}

// CheckAll runs health checks on every instance.
func (m *Monitor) CheckAll(ctx context.Context) ([]CollectionHealth, error) {
	instances, err := m.manager.List(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]CollectionHealth, 0, len(instances))
	for _, inst := range instances {
		health, err := m.CheckHealth(ctx, inst.Name)
		if err != nil {
			return nil, err
		}
		results = append(results, health)
	}
	return results, nil
}

// degenerateVector reports whether an embedding is all zeros or carries
// NaN/Inf components. Either breaks cosine similarity ordering.
func degenerateVector(vec []float32) bool {
	if len(vec) == 0 {
		return true
	}
	allZero := true
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
		if v != 0 {
			allZero = false
		}
	}
	return allZero
}

// hasDescriptiveMetadata reports whether a chunk carries metadata beyond
// the automatic ownership stamp.
func hasDescriptiveMetadata(metadata map[string]string) bool {
	for k, v := range metadata {
		if k == vectorstore.MetadataInstanceKey {
			continue
		}
		if v != "" {
			return true
		}
	}
	return false
}

// grade maps the measured ratios to a status plus human-readable issues.
func grade(h CollectionHealth) (HealthStatus, []string) {
	status := HealthGood
	var issues []string

	raise := func(s HealthStatus) {
		if s == HealthCritical || (s == HealthDegraded && status == HealthGood) {
			status = s
		}
	}

	switch {
	case h.ZeroVectorRatio >= zeroVectorCritical:
		raise(HealthCritical)
		issues = append(issues, fmt.Sprintf("%.1f%% of sampled embeddings are degenerate", h.ZeroVectorRatio*100))
	case h.ZeroVectorRatio >= zeroVectorDegraded:
		raise(HealthDegraded)
		issues = append(issues, fmt.Sprintf("%.1f%% of sampled embeddings are degenerate", h.ZeroVectorRatio*100))
	}

	switch {
	case h.DuplicateRatio >= duplicateCritical:
		raise(HealthCritical)
		issues = append(issues, fmt.Sprintf("%.1f%% of sampled documents are duplicates", h.DuplicateRatio*100))
	case h.DuplicateRatio >= duplicateDegraded:
		raise(HealthDegraded)
		issues = append(issues, fmt.Sprintf("%.1f%% of sampled documents are duplicates", h.DuplicateRatio*100))
	}

	if h.MetadataCompleteness < metadataDegraded {
		raise(HealthDegraded)
		issues = append(issues, fmt.Sprintf("only %.1f%% of sampled documents carry descriptive metadata", h.MetadataCompleteness*100))
	}

	return status, issues
}
