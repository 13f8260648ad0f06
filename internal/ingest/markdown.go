package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MarkdownProcessor handles Markdown files. It strips formatting down to
// plain text so embeddings are not polluted with syntax, and lifts the
// first H1 as the title.
type MarkdownProcessor struct{}

func (p *MarkdownProcessor) Extensions() []string {
	return []string{".md", ".markdown"}
}

var (
	mdCodeFence  = regexp.MustCompile("(?s)```.*?```")
	mdInlineCode = regexp.MustCompile("`([^`]*)`")
	mdImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasis   = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	mdFirstH1    = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

func (p *MarkdownProcessor) Process(name string, raw []byte) (Document, error) {
	if !utf8.Valid(raw) {
		return Document{}, fmt.Errorf("file %s is not valid UTF-8", name)
	}
	src := string(raw)

	title := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if m := mdFirstH1.FindStringSubmatch(src); m != nil {
		title = strings.TrimSpace(m[1])
	}

	text := mdCodeFence.ReplaceAllString(src, "")
	text = mdImage.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdInlineCode.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdEmphasis.ReplaceAllString(text, "$2")

	return Document{
		Title:    title,
		Text:     strings.TrimSpace(text),
		Metadata: map[string]string{"format": "markdown"},
	}, nil
}
