package instance

import (
	"context"
	"fmt"

	"github.com/aischolar/scholar/internal/vectorstore"
)

// auditSampleLimit bounds the number of chunks inspected per instance.
const auditSampleLimit = 500

// Violation is one chunk whose ownership stamp disagrees with its
// instance's collection.
type Violation struct {
	InstanceName string `json:"instance_name"`
	ChunkID      string `json:"chunk_id"`
	StampedName  string `json:"stamped_name"`
}

// SeparationReport is the result of a cross-instance separation audit.
type SeparationReport struct {
	InstancesChecked int         `json:"instances_checked"`
	ChunksChecked    int         `json:"chunks_checked"`
	Violations       []Violation `json:"violations,omitempty"`
}

// Clean reports whether the audit found no violations.
func (r SeparationReport) Clean() bool {
	return len(r.Violations) == 0
}

// ValidateSeparation audits every instance's collection, checking that
// each sampled chunk carries the owning instance's name in its metadata.
// A missing or mismatched stamp indicates data written outside the
// manager path, or a restore into the wrong instance.
func (m *Manager) ValidateSeparation(ctx context.Context) (SeparationReport, error) {
	instances, err := m.List(ctx)
	if err != nil {
		return SeparationReport{}, fmt.Errorf("separation audit: %w", err)
	}

	report := SeparationReport{InstancesChecked: len(instances)}
	for _, inst := range instances {
		chunks, err := m.store.Sample(ctx, inst.Collection, auditSampleLimit)
		if err != nil {
			return SeparationReport{}, fmt.Errorf("separation audit: sampling %q: %w", inst.Name, err)
		}
		report.ChunksChecked += len(chunks)

		for _, chunk := range chunks {
			stamped := chunk.Metadata[vectorstore.MetadataInstanceKey]
			if stamped != inst.Name {
				report.Violations = append(report.Violations, Violation{
					InstanceName: inst.Name,
					ChunkID:      chunk.ID,
					StampedName:  stamped,
				})
			}
		}

		if err := ctx.Err(); err != nil {
			return SeparationReport{}, err
		}
	}

	if !report.Clean() {
		m.logger.Warn("separation audit found violations",
			"instances", report.InstancesChecked,
			"violations", len(report.Violations))
	}
	return report, nil
}
