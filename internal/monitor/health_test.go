package monitor

import (
	"math"
	"strings"
	"testing"
)

func TestDegenerateVector(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		want bool
	}{
		{"normal", []float32{0.1, -0.2, 0.3}, false},
		{"empty", nil, true},
		{"all zeros", []float32{0, 0, 0}, true},
		{"nan component", []float32{0.1, float32(math.NaN())}, true},
		{"inf component", []float32{float32(math.Inf(1)), 0.2}, true},
		{"single nonzero", []float32{0, 0, 0.001}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := degenerateVector(tt.vec); got != tt.want {
				t.Errorf("degenerateVector(%v) = %v, want %v", tt.vec, got, tt.want)
			}
		})
	}
}

func TestHasDescriptiveMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		want     bool
	}{
		{"nil", nil, false},
		{"only stamp", map[string]string{"instance_name": "ml"}, false},
		{"stamp plus source", map[string]string{"instance_name": "ml", "source_type": "paper"}, true},
		{"empty value", map[string]string{"instance_name": "ml", "title": ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasDescriptiveMetadata(tt.metadata); got != tt.want {
				t.Errorf("hasDescriptiveMetadata(%v) = %v, want %v", tt.metadata, got, tt.want)
			}
		})
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name       string
		health     CollectionHealth
		wantStatus HealthStatus
		wantIssue  string
	}{
		{
			"all good",
			CollectionHealth{MetadataCompleteness: 1},
			HealthGood, "",
		},
		{
			"few zero vectors",
			CollectionHealth{ZeroVectorRatio: 0.02, MetadataCompleteness: 1},
			HealthDegraded, "degenerate",
		},
		{
			"many zero vectors",
			CollectionHealth{ZeroVectorRatio: 0.5, MetadataCompleteness: 1},
			HealthCritical, "degenerate",
		},
		{
			"some duplicates",
			CollectionHealth{DuplicateRatio: 0.1, MetadataCompleteness: 1},
			HealthDegraded, "duplicates",
		},
		{
			"many duplicates",
			CollectionHealth{DuplicateRatio: 0.3, MetadataCompleteness: 1},
			HealthCritical, "duplicates",
		},
		{
			"sparse metadata",
			CollectionHealth{MetadataCompleteness: 0.5},
			HealthDegraded, "metadata",
		},
		{
			"critical wins over degraded",
			CollectionHealth{ZeroVectorRatio: 0.5, MetadataCompleteness: 0.5},
			HealthCritical, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, issues := grade(tt.health)
			if status != tt.wantStatus {
				t.Errorf("grade() status = %s, want %s", status, tt.wantStatus)
			}
			if tt.wantIssue == "" {
				return
			}
			found := false
			for _, issue := range issues {
				if strings.Contains(issue, tt.wantIssue) {
					found = true
				}
			}
			if !found {
				t.Errorf("issues %v missing %q", issues, tt.wantIssue)
			}
		})
	}
}
