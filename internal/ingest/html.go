package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLProcessor handles local HTML files. Scripts, styles and navigation
// chrome are dropped before text extraction.
type HTMLProcessor struct{}

func (p *HTMLProcessor) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

func (p *HTMLProcessor) Process(name string, raw []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Document{}, fmt.Errorf("parsing HTML %s: %w", name, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	doc.Find("script, style, nav, header, footer, noscript, iframe").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	text := normalizeWhitespace(body.Text())
	if text == "" {
		return Document{}, fmt.Errorf("no text content in %s", name)
	}

	return Document{
		Title:    title,
		Text:     text,
		Metadata: map[string]string{"format": "html"},
	}, nil
}

// normalizeWhitespace collapses runs of whitespace, keeping paragraph
// breaks as single newlines.
func normalizeWhitespace(s string) string {
	var sb strings.Builder
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	return sb.String()
}
