package profile

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate_TopicRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short untouched", "graph neural networks", 256, "graph neural networks"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"multibyte rune not split", "αβγ", 3, "α"},
		{"cut on boundary", "αβγ", 4, "αβ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}

	topic := strings.Repeat("машинное обучение ", 50)
	got := truncate(topic, MaxTopicLength)
	if len(got) > MaxTopicLength {
		t.Fatalf("len = %d, want <= %d", len(got), MaxTopicLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated topic is not valid UTF-8")
	}
}
