// Package arxiv queries the arXiv Atom API and imports papers into
// instance collections.
package arxiv

import (
	"encoding/xml"
	"strings"
	"time"
)

// Paper is one arXiv entry in domain form.
type Paper struct {
	ID         string    `json:"id"` // e.g. 2406.01234v1
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract"`
	Authors    []string  `json:"authors"`
	Categories []string  `json:"categories"`
	PDFURL     string    `json:"pdf_url,omitempty"`
	Published  time.Time `json:"published"`
	Updated    time.Time `json:"updated"`
}

// atomFeed mirrors the arXiv API response envelope.
type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	StartIndex   int         `xml:"startIndex"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// toPaper converts one Atom entry, normalizing whitespace in the title
// and abstract (the API wraps both with newlines and indentation).
func (e atomEntry) toPaper() Paper {
	p := Paper{
		ID:       strings.TrimPrefix(e.ID, "http://arxiv.org/abs/"),
		Title:    collapseSpace(e.Title),
		Abstract: collapseSpace(e.Summary),
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, a.Name)
	}
	for _, c := range e.Categories {
		p.Categories = append(p.Categories, c.Term)
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		p.Published = t
	}
	if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
		p.Updated = t
	}
	return p
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
