package ingest

import (
	"strings"
	"testing"
)

func TestRegistry_Lookup(t *testing.T) {
	r := newRegistry(defaultProcessors()...)

	tests := []struct {
		name   string
		wantOK bool
	}{
		{"paper.txt", true},
		{"notes.MD", true},
		{"page.html", true},
		{"data.csv", false},
		{"binary.pdf", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if _, ok := r.lookup(tt.name); ok != tt.wantOK {
			t.Errorf("lookup(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
		}
	}
}

func TestTextProcessor(t *testing.T) {
	p := &TextProcessor{}
	doc, err := p.Process("notes.txt", []byte("  some research notes\n"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if doc.Title != "notes" {
		t.Errorf("Title = %q, want notes", doc.Title)
	}
	if doc.Text != "some research notes" {
		t.Errorf("Text = %q", doc.Text)
	}
	if doc.Metadata["format"] != "text" {
		t.Errorf("format = %q, want text", doc.Metadata["format"])
	}

	if _, err := p.Process("bad.txt", []byte{0xff, 0xfe, 0x00}); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestMarkdownProcessor(t *testing.T) {
	src := "# Attention Mechanisms\n\nSee [the paper](https://example.org) and `code`.\n\n```go\nfunc ignored() {}\n```\n\nSome **bold** text."
	p := &MarkdownProcessor{}
	doc, err := p.Process("attention.md", []byte(src))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if doc.Title != "Attention Mechanisms" {
		t.Errorf("Title = %q, want first H1", doc.Title)
	}
	for _, banned := range []string{"```", "](", "#", "**"} {
		if strings.Contains(doc.Text, banned) {
			t.Errorf("Text still contains %q: %q", banned, doc.Text)
		}
	}
	if !strings.Contains(doc.Text, "the paper") {
		t.Errorf("link text lost: %q", doc.Text)
	}
	if strings.Contains(doc.Text, "func ignored") {
		t.Errorf("code fence content leaked: %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "bold") {
		t.Errorf("emphasis text lost: %q", doc.Text)
	}
}

func TestMarkdownProcessor_TitleFallback(t *testing.T) {
	p := &MarkdownProcessor{}
	doc, err := p.Process("reading-list.md", []byte("no heading here"))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if doc.Title != "reading-list" {
		t.Errorf("Title = %q, want reading-list", doc.Title)
	}
}

func TestHTMLProcessor(t *testing.T) {
	src := `<html><head><title>Survey Page</title><style>p{color:red}</style></head>
<body><nav>skip me</nav><script>alert(1)</script>
<p>First paragraph.</p>
<p>Second   paragraph with    spaces.</p>
<footer>copyright</footer></body></html>`

	p := &HTMLProcessor{}
	doc, err := p.Process("survey.html", []byte(src))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if doc.Title != "Survey Page" {
		t.Errorf("Title = %q, want Survey Page", doc.Title)
	}
	for _, banned := range []string{"skip me", "alert", "color:red", "copyright"} {
		if strings.Contains(doc.Text, banned) {
			t.Errorf("Text contains stripped content %q: %q", banned, doc.Text)
		}
	}
	if !strings.Contains(doc.Text, "First paragraph.") {
		t.Errorf("paragraph lost: %q", doc.Text)
	}
	if strings.Contains(doc.Text, "  ") {
		t.Errorf("whitespace not normalized: %q", doc.Text)
	}
}

func TestHTMLProcessor_EmptyBody(t *testing.T) {
	p := &HTMLProcessor{}
	if _, err := p.Process("empty.html", []byte("<html><body></body></html>")); err == nil {
		t.Error("expected error for empty body")
	}
}
