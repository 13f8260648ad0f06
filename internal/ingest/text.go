package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// TextProcessor handles plain text files.
type TextProcessor struct{}

func (p *TextProcessor) Extensions() []string {
	return []string{".txt", ".text", ".log", ".rst"}
}

func (p *TextProcessor) Process(name string, raw []byte) (Document, error) {
	if !utf8.Valid(raw) {
		return Document{}, fmt.Errorf("file %s is not valid UTF-8", name)
	}
	text := strings.TrimSpace(string(raw))
	return Document{
		Title:    strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)),
		Text:     text,
		Metadata: map[string]string{"format": "text"},
	}, nil
}
