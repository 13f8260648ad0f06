// Package ingest turns documents (files, directories, URLs) into chunks
// stored in an instance's collection.
//
// Format handling uses a strategy per content type: each Processor
// extracts plain text and document-level metadata from one format, and
// the shared chunker splits the text before storage.
package ingest

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for files no processor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is the processor output: extracted text plus metadata.
type Document struct {
	Title    string
	Text     string
	Metadata map[string]string
}

// Processor extracts text from one document format.
type Processor interface {
	// Extensions returns the file extensions this processor handles,
	// lowercase with leading dot.
	Extensions() []string

	// Process extracts plain text and metadata from raw content.
	// name is the source file name, used for title fallbacks.
	Process(name string, raw []byte) (Document, error)
}

// registry maps extensions to processors.
type registry struct {
	byExt map[string]Processor
}

func newRegistry(processors ...Processor) *registry {
	r := &registry{byExt: make(map[string]Processor)}
	for _, p := range processors {
		for _, ext := range p.Extensions() {
			r.byExt[strings.ToLower(ext)] = p
		}
	}
	return r
}

// lookup finds the processor for a file name by extension.
func (r *registry) lookup(name string) (Processor, bool) {
	p, ok := r.byExt[strings.ToLower(filepath.Ext(name))]
	return p, ok
}

// defaultProcessors covers the formats the platform ingests natively.
func defaultProcessors() []Processor {
	return []Processor{
		&TextProcessor{},
		&MarkdownProcessor{},
		&HTMLProcessor{},
	}
}
