package instance

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple", "ml_research", nil},
		{"with digits", "course2026", nil},
		{"minimum length", "ai", nil},
		{"too short", "a", ErrInvalidName},
		{"too long", strings.Repeat("a", MaxNameLength+1), ErrInvalidName},
		{"uppercase", "ML_research", ErrInvalidName},
		{"starts with digit", "2026course", ErrInvalidName},
		{"starts with underscore", "_private", ErrInvalidName},
		{"trailing underscore", "topic_", ErrInvalidName},
		{"consecutive underscores", "deep__learning", ErrInvalidName},
		{"hyphen", "deep-learning", ErrInvalidName},
		{"space", "deep learning", ErrInvalidName},
		{"path traversal", "../etc", ErrInvalidName},
		{"sql-ish", "papers;drop", ErrInvalidName},
		{"reserved default", "default", ErrReservedName},
		{"reserved system", "system", ErrReservedName},
		{"reserved backup", "backup", ErrReservedName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateName(%q) error = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCollectionName(t *testing.T) {
	got := CollectionName("ml_research")
	want := "scholar_instance_ml_research_papers"
	if got != want {
		t.Errorf("CollectionName() = %q, want %q", got, want)
	}
}

func TestInstanceNameFromCollection(t *testing.T) {
	tests := []struct {
		collection string
		wantName   string
		wantOK     bool
	}{
		{"scholar_instance_ml_research_papers", "ml_research", true},
		{"scholar_instance_ai_papers", "ai", true},
		{"scholar_instance__papers", "", false},
		{"other_collection", "", false},
		{"scholar_instance_nlp", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			name, ok := InstanceNameFromCollection(tt.collection)
			if ok != tt.wantOK || name != tt.wantName {
				t.Errorf("InstanceNameFromCollection(%q) = (%q, %v), want (%q, %v)",
					tt.collection, name, ok, tt.wantName, tt.wantOK)
			}
		})
	}
}

func TestCollectionNameRoundTrip(t *testing.T) {
	for _, name := range []string{"ml", "deep_learning", "course2026"} {
		got, ok := InstanceNameFromCollection(CollectionName(name))
		if !ok || got != name {
			t.Errorf("round trip for %q = (%q, %v)", name, got, ok)
		}
	}
}

func TestNewManager_RequiresStore(t *testing.T) {
	if _, err := NewManager(nil, nil); err == nil {
		t.Error("NewManager(nil, nil) expected error, got nil")
	}
}
