package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Chunking defaults, in runes. Overlap carries context across chunk
// boundaries so a sentence split mid-chunk is still retrievable.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// Chunker splits extracted text into overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Non-positive size falls back to the
// default; overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into chunks of roughly c.size runes with c.overlap
// runes of overlap. Boundaries prefer paragraph breaks, then sentence
// ends, then whitespace, within the last fifth of the window.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		end = breakpoint(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakpoint finds a natural split position in runes[start:end], looking
// backward from end but no further than a fifth of the window.
func breakpoint(runes []rune, start, end int) int {
	limit := end - (end-start)/5

	for i := end; i > limit; i-- {
		if runes[i-1] == '\n' && i < len(runes) && runes[i] == '\n' {
			return i
		}
	}
	for i := end; i > limit; i-- {
		switch runes[i-1] {
		case '.', '!', '?', '。', '！', '？':
			return i
		}
	}
	for i := end; i > limit; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\n' {
			return i
		}
	}
	return end
}

// ChunkID derives a stable chunk id from the document id and chunk
// content. Re-ingesting identical content produces identical ids, so
// repeated ingestion upserts instead of duplicating.
func ChunkID(docID string, index int, content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s-c%d-%s", docID, index, hex.EncodeToString(h[:8]))
}

// DocID derives a stable document id from its source identifier (path
// or URL).
func DocID(source string) string {
	h := sha256.Sum256([]byte(source))
	return "doc_" + hex.EncodeToString(h[:16])
}
