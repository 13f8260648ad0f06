// Package zotero synchronizes a Zotero library into instance
// collections, with webhook-triggered incremental sync.
package zotero

import (
	"strings"
)

// Item is one Zotero library entry as returned by the API.
type Item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Data    ItemData `json:"data"`
}

// ItemData holds the item fields the platform uses.
type ItemData struct {
	Key          string    `json:"key"`
	Version      int       `json:"version"`
	ItemType     string    `json:"itemType"`
	Title        string    `json:"title"`
	AbstractNote string    `json:"abstractNote"`
	Date         string    `json:"date"`
	DOI          string    `json:"DOI"`
	URL          string    `json:"url"`
	Creators     []Creator `json:"creators"`
	Tags         []Tag     `json:"tags"`
}

// Creator is one author/editor entry.
type Creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Name        string `json:"name"` // single-field names (institutions)
}

// Tag is one item tag.
type Tag struct {
	Tag string `json:"tag"`
}

// skippedItemTypes are structural entries with no text worth embedding.
var skippedItemTypes = map[string]bool{
	"attachment": true,
	"note":       true,
	"annotation": true,
}

// Syncable reports whether the item carries content worth indexing.
func (i Item) Syncable() bool {
	if skippedItemTypes[i.Data.ItemType] {
		return false
	}
	return strings.TrimSpace(i.Data.Title) != "" || strings.TrimSpace(i.Data.AbstractNote) != ""
}

// AuthorList renders creators as a comma-separated string.
func (d ItemData) AuthorList() string {
	var authors []string
	for _, c := range d.Creators {
		switch {
		case c.Name != "":
			authors = append(authors, c.Name)
		case c.LastName != "" && c.FirstName != "":
			authors = append(authors, c.FirstName+" "+c.LastName)
		case c.LastName != "":
			authors = append(authors, c.LastName)
		}
	}
	return strings.Join(authors, ", ")
}

// TagList renders tags as a comma-separated string.
func (d ItemData) TagList() string {
	var tags []string
	for _, t := range d.Tags {
		if t.Tag != "" {
			tags = append(tags, t.Tag)
		}
	}
	return strings.Join(tags, ",")
}
